package diag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/webmondiag/webmondiag/pkg/types"
)

// Server is the part of the Responder the Coordinator drives.
type Server interface {
	Start() error
	Stop()
	SyncListener() error
}

// Coordinator is the single entry point for configuration changes. It
// validates input, skips changes that would not alter anything, restarts
// the server when its identity changes, and narrates every step.
type Coordinator struct {
	mu     sync.Mutex
	store  *Store
	server Server
	view   View
	events EventLog
}

// NewCoordinator wires a coordinator to its state, server and sinks.
// A nil view or events discards the corresponding output.
func NewCoordinator(store *Store, server Server, view View, events EventLog) *Coordinator {
	if view == nil {
		view = NopView
	}
	if events == nil {
		events = NopLog
	}
	return &Coordinator{
		store:  store,
		server: server,
		view:   view,
		events: events,
	}
}

// State returns the current endpoint state.
func (c *Coordinator) State() State {
	return c.store.Load()
}

func (c *Coordinator) info(format string, args ...any) {
	c.events.Log(types.EventLevelInfo, fmt.Sprintf(format, args...))
}

func (c *Coordinator) highlight(format string, args ...any) {
	c.events.Log(types.EventLevelHighlight, fmt.Sprintf(format, args...))
}

func (c *Coordinator) fail(format string, args ...any) {
	c.events.Log(types.EventLevelError, fmt.Sprintf(format, args...))
}

// reject echoes the unchanged field and logs why the change was refused.
func (c *Coordinator) reject(field Field, err error) (State, error) {
	st := c.store.Load()
	c.fail("Rejected change: %v", err)
	c.view.Echo(field, st)
	return st, err
}

// unchanged echoes the current value without touching the state.
func (c *Coordinator) unchanged(field Field) (State, error) {
	st := c.store.Load()
	c.view.Echo(field, st)
	return st, nil
}

// commit applies fn, echoes field and logs note. When restart is set and
// the server is running, the server is stopped before and started again
// after the mutation so the new identity takes effect. The note is logged
// before the restart.
func (c *Coordinator) commit(field Field, restart bool, fn func(*State), note string) (State, error) {
	running := restart && c.store.Load().Started
	if running {
		c.server.Stop()
	}
	st := c.store.Update(fn)
	c.view.Echo(field, st)
	c.info("%s", note)

	if running {
		if err := c.server.Start(); err != nil {
			return c.bindFailed(err)
		}
		st = c.store.Load()
	}
	return st, nil
}

// bindFailed forces the server back to stopped and reports err.
func (c *Coordinator) bindFailed(err error) (State, error) {
	c.fail("Error has occurred: %v", err)
	c.view.ShowError(err)
	c.stop()
	return c.store.Load(), err
}

// SetHostname changes the bind address.
func (c *Coordinator) SetHostname(host string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setHostname(host)
}

func (c *Coordinator) setHostname(host string) (State, error) {
	if err := ValidateHostname(host); err != nil {
		return c.reject(FieldHostname, err)
	}
	if c.store.Load().Hostname == host {
		return c.unchanged(FieldHostname)
	}
	return c.commit(FieldHostname, true, func(s *State) { s.Hostname = host }, fmt.Sprintf("Hostname set to %s", host))
}

// SetPort changes the bind port.
func (c *Coordinator) SetPort(port uint16) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setPort(port)
}

func (c *Coordinator) setPort(port uint16) (State, error) {
	if c.store.Load().Port == port {
		return c.unchanged(FieldPort)
	}
	return c.commit(FieldPort, true, func(s *State) { s.Port = port }, fmt.Sprintf("Port set to %d", port))
}

// SetPath changes the HTTP path the endpoint answers on. The input is
// normalized first, see NormalizePath.
func (c *Coordinator) SetPath(path string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setPath(path)
}

func (c *Coordinator) setPath(path string) (State, error) {
	path, err := NormalizePath(path)
	if err != nil {
		return c.reject(FieldPath, err)
	}
	if c.store.Load().Path == path {
		return c.unchanged(FieldPath)
	}
	return c.commit(FieldPath, true, func(s *State) { s.Path = path }, fmt.Sprintf("Endpoint path set to %s", path))
}

// SetListenEnabled opens or closes the listening socket. A stopped server
// only records the intent.
func (c *Coordinator) SetListenEnabled(on bool) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setListenEnabled(on)
}

func (c *Coordinator) setListenEnabled(on bool) (State, error) {
	if c.store.Load().ListenEnabled == on {
		return c.unchanged(FieldListen)
	}
	st := c.store.Update(func(s *State) { s.ListenEnabled = on })
	c.view.Echo(FieldListen, st)
	c.info("Port listening %s", startedStopped(on))

	if err := c.server.SyncListener(); err != nil {
		return c.bindFailed(err)
	}
	return c.store.Load(), nil
}

// SetRespondEnabled enables or withholds answers. Enabling releases every
// request that is currently held back.
func (c *Coordinator) SetRespondEnabled(on bool) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setRespondEnabled(on)
}

func (c *Coordinator) setRespondEnabled(on bool) (State, error) {
	if c.store.Load().RespondEnabled == on {
		return c.unchanged(FieldRespond)
	}
	return c.commit(FieldRespond, false, func(s *State) { s.RespondEnabled = on }, fmt.Sprintf("HTTP response %s", startedStopped(on)))
}

// SetDelayEnabled turns the response delay on or off.
func (c *Coordinator) SetDelayEnabled(on bool) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setDelayEnabled(on)
}

func (c *Coordinator) setDelayEnabled(on bool) (State, error) {
	if c.store.Load().DelayEnabled == on {
		return c.unchanged(FieldDelay)
	}
	return c.commit(FieldDelay, false, func(s *State) { s.DelayEnabled = on }, fmt.Sprintf("Response delay %s", startedStopped(on)))
}

// SetDelayMs sets the response delay in milliseconds.
func (c *Coordinator) SetDelayMs(ms int) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setDelayMs(ms)
}

func (c *Coordinator) setDelayMs(ms int) (State, error) {
	if err := validateNonNegative(FieldDelayMs, ms); err != nil {
		return c.reject(FieldDelayMs, err)
	}
	if c.store.Load().DelayMs == ms {
		return c.unchanged(FieldDelayMs)
	}
	return c.commit(FieldDelayMs, false, func(s *State) { s.DelayMs = ms }, fmt.Sprintf("HTTP response delay time is set to %dms", ms))
}

// SetStatusCode sets the status returned to clients. Any non-negative
// value is accepted, including ones outside the registered range.
func (c *Coordinator) SetStatusCode(code int) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setStatusCode(code)
}

func (c *Coordinator) setStatusCode(code int) (State, error) {
	if err := validateNonNegative(FieldStatusCode, code); err != nil {
		return c.reject(FieldStatusCode, err)
	}
	if c.store.Load().StatusCode == code {
		return c.unchanged(FieldStatusCode)
	}
	return c.commit(FieldStatusCode, false, func(s *State) { s.StatusCode = code }, fmt.Sprintf("HTTP response code set to %d", code))
}

// SetEmptyBody forces an empty body regardless of the configured one.
func (c *Coordinator) SetEmptyBody(on bool) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setEmptyBody(on)
}

func (c *Coordinator) setEmptyBody(on bool) (State, error) {
	if c.store.Load().EmptyBody == on {
		return c.unchanged(FieldEmptyBody)
	}
	return c.commit(FieldEmptyBody, false, func(s *State) { s.EmptyBody = on }, fmt.Sprintf("Empty page return is %s", enabledDisabled(on)))
}

// SetBodyContent sets the response body directly.
func (c *Coordinator) SetBodyContent(body string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setBody(body, "")
}

// SetBodyFromFile loads the response body from a file. An empty path
// clears the body.
func (c *Coordinator) SetBodyFromFile(path string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setBodyFromFile(path)
}

func (c *Coordinator) setBodyFromFile(path string) (State, error) {
	if path == "" {
		return c.setBody("", "")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c.reject(FieldBody, &ValidationError{Field: FieldBody, Value: path, Reason: unwrapPathError(err)})
	}
	return c.setBody(string(data), filepath.Clean(path))
}

func (c *Coordinator) setBody(body, source string) (State, error) {
	cur := c.store.Load()
	if cur.Body == body && cur.BodySource == source {
		return c.unchanged(FieldBody)
	}
	var note string
	switch {
	case source != "":
		note = fmt.Sprintf("Web page set to %s", source)
	case body == "":
		note = "Web page set to none"
	default:
		note = fmt.Sprintf("Response body set (%d bytes)", len(body))
	}
	return c.commit(FieldBody, false, func(s *State) {
		s.Body = body
		s.BodySource = source
	}, note)
}

// StartServer toggles the server: a running server is stopped, a stopped
// one is started. A failed bind leaves it stopped with the error flag set.
func (c *Coordinator) StartServer() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store.Load().Started {
		return c.stop(), nil
	}
	return c.start()
}

// StopServer stops a running server; it is a no-op otherwise.
func (c *Coordinator) StopServer() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.store.Load().Started {
		return c.store.Load()
	}
	return c.stop()
}

func (c *Coordinator) start() (State, error) {
	if err := c.server.Start(); err != nil {
		return c.bindFailed(err)
	}
	st := c.store.Load()
	c.info("Server is running on %s", st.Addr())
	c.view.Echo(FieldStarted, st)
	c.view.ShowStarted(true)
	return st, nil
}

func (c *Coordinator) stop() State {
	c.server.Stop()
	st := c.store.Load()
	c.view.ShowStarted(false)
	c.info("Server is stopped")
	return st
}

// Reset stops the server and re-applies every default through the regular
// setters.
func (c *Coordinator) Reset() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.highlight("Start data reset...")
	if c.store.Load().Started {
		c.stop()
	}

	d := DefaultState()
	c.setListenEnabled(d.ListenEnabled)
	c.setRespondEnabled(d.RespondEnabled)
	c.setStatusCode(d.StatusCode)
	c.setPort(d.Port)
	c.setHostname(d.Hostname)
	c.setPath(d.Path)
	c.setDelayMs(d.DelayMs)
	c.setDelayEnabled(d.DelayEnabled)
	c.setEmptyBody(d.EmptyBody)
	c.setBody(d.Body, d.BodySource)

	c.highlight("Data reset completed")
	return c.store.Load()
}

// Apply runs every field set in ch through its setter, in a fixed order.
// All fields are attempted; the errors of rejected ones are joined.
func (c *Coordinator) Apply(ch types.Change) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	add := func(_ State, err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if ch.ListenEnabled != nil {
		add(c.setListenEnabled(*ch.ListenEnabled))
	}
	if ch.RespondEnabled != nil {
		add(c.setRespondEnabled(*ch.RespondEnabled))
	}
	if ch.StatusCode != nil {
		add(c.setStatusCode(*ch.StatusCode))
	}
	if ch.Port != nil {
		add(c.setPort(*ch.Port))
	}
	if ch.Hostname != nil {
		add(c.setHostname(*ch.Hostname))
	}
	if ch.Path != nil {
		add(c.setPath(*ch.Path))
	}
	if ch.DelayMs != nil {
		add(c.setDelayMs(*ch.DelayMs))
	}
	if ch.DelayEnabled != nil {
		add(c.setDelayEnabled(*ch.DelayEnabled))
	}
	if ch.EmptyBody != nil {
		add(c.setEmptyBody(*ch.EmptyBody))
	}
	if ch.BodyFile != nil {
		add(c.setBodyFromFile(*ch.BodyFile))
	} else if ch.Body != nil {
		add(c.setBody(*ch.Body, ""))
	}

	return c.store.Load(), errors.Join(errs...)
}

func startedStopped(on bool) string {
	if on {
		return "started"
	}
	return "stopped"
}

func enabledDisabled(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func unwrapPathError(err error) string {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}

// ParsePort parses a decimal port number.
func ParsePort(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, &ValidationError{Field: FieldPort, Value: s, Reason: "must be a number between 0 and 65535"}
	}
	return uint16(v), nil
}
