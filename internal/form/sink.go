package form

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/webmondiag/webmondiag/internal/diag"
	"github.com/webmondiag/webmondiag/pkg/types"
)

type stateMsg struct{ state diag.State }

type logMsg struct {
	level types.EventLevel
	text  string
}

type serverErrMsg struct{ err error }

type startedMsg struct{ running bool }

// Sink turns coordinator output into program messages. It implements both
// diag.View and diag.EventLog. Messages produced before Attach are queued
// and delivered once the program runs.
type Sink struct {
	mu      sync.Mutex
	program *tea.Program
	pending []tea.Msg
}

// NewSink creates a detached sink.
func NewSink() *Sink {
	return &Sink{}
}

// Attach starts delivering messages to p.
func (s *Sink) Attach(p *tea.Program) {
	s.mu.Lock()
	s.program = p
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	go func() {
		for _, msg := range pending {
			p.Send(msg)
		}
	}()
}

func (s *Sink) send(msg tea.Msg) {
	s.mu.Lock()
	p := s.program
	if p == nil {
		s.pending = append(s.pending, msg)
	}
	s.mu.Unlock()

	if p != nil {
		p.Send(msg)
	}
}

func (s *Sink) Echo(_ diag.Field, st diag.State) { s.send(stateMsg{st}) }

func (s *Sink) ShowStarted(running bool) { s.send(startedMsg{running}) }

func (s *Sink) ShowError(err error) { s.send(serverErrMsg{err}) }

func (s *Sink) Log(level types.EventLevel, text string) { s.send(logMsg{level, text}) }
