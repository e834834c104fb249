package diag

import (
	"github.com/webmondiag/webmondiag/pkg/types"
)

// View is the operator-facing presentation sink. Every change request,
// accepted or not, is echoed back so a front end always shows the state
// that is actually in effect.
type View interface {
	// Echo refreshes the displayed value of field from st.
	Echo(field Field, st State)
	// ShowStarted reports a server run-state transition.
	ShowStarted(running bool)
	// ShowError reports a server-level failure such as a failed bind.
	ShowError(err error)
}

// EventLog receives the human-readable narration of what happened.
type EventLog interface {
	Log(level types.EventLevel, text string)
}

// EventLogFunc adapts a function to EventLog.
type EventLogFunc func(level types.EventLevel, text string)

// Log calls f.
func (f EventLogFunc) Log(level types.EventLevel, text string) {
	f(level, text)
}

// MultiLog fans one event out to several logs.
type MultiLog []EventLog

// Log forwards the event to every log in order.
func (m MultiLog) Log(level types.EventLevel, text string) {
	for _, l := range m {
		if l != nil {
			l.Log(level, text)
		}
	}
}

// MultiView fans presentation updates out to several views.
type MultiView []View

// Echo forwards the echoed state to every view.
func (m MultiView) Echo(field Field, st State) {
	for _, v := range m {
		v.Echo(field, st)
	}
}

// ShowStarted forwards the run-state transition to every view.
func (m MultiView) ShowStarted(running bool) {
	for _, v := range m {
		v.ShowStarted(running)
	}
}

// ShowError forwards the failure to every view.
func (m MultiView) ShowError(err error) {
	for _, v := range m {
		v.ShowError(err)
	}
}

type nopView struct{}

func (nopView) Echo(Field, State) {}
func (nopView) ShowStarted(bool) {}
func (nopView) ShowError(error) {}

// NopView discards every presentation update.
var NopView View = nopView{}

// NopLog discards every event.
var NopLog EventLog = EventLogFunc(func(types.EventLevel, string) {})
