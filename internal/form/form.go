// Package form is a full-screen terminal front end for the diagnostic
// endpoint.
package form

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/webmondiag/webmondiag/internal/diag"
	"github.com/webmondiag/webmondiag/pkg/types"
)

// Controller is the part of diag.Coordinator the form drives.
type Controller interface {
	State() diag.State
	Apply(ch types.Change) (diag.State, error)
	StartServer() (diag.State, error)
	Reset() diag.State
}

const logTail = 12

const (
	actionApply  = "apply"
	actionToggle = "toggle"
	actionReset  = "reset"
	actionQuit   = "quit"
)

// values backs the form fields. Numbers are kept as text so malformed
// input can be rejected by the field validators.
type values struct {
	hostname string
	port     string
	path     string
	status   string
	delayMs  string
	bodyFile string
	listen   bool
	respond  bool
	delay    bool
	empty    bool
	action   string
}

func valuesFrom(st diag.State) *values {
	return &values{
		hostname: st.Hostname,
		port:     strconv.Itoa(int(st.Port)),
		path:     st.Path,
		status:   strconv.Itoa(st.StatusCode),
		delayMs:  strconv.Itoa(st.DelayMs),
		bodyFile: st.BodySource,
		listen:   st.ListenEnabled,
		respond:  st.RespondEnabled,
		delay:    st.DelayEnabled,
		empty:    st.EmptyBody,
		action:   actionApply,
	}
}

// change builds the batch to apply. The body file is only sent when it was
// edited, so a body set elsewhere is not cleared by an untouched field.
func (v *values) change(cur diag.State) (types.Change, error) {
	port, err := diag.ParsePort(strings.TrimSpace(v.port))
	if err != nil {
		return types.Change{}, err
	}
	status, err := strconv.Atoi(strings.TrimSpace(v.status))
	if err != nil {
		return types.Change{}, fmt.Errorf("invalid status code %q", v.status)
	}
	delayMs, err := strconv.Atoi(strings.TrimSpace(v.delayMs))
	if err != nil {
		return types.Change{}, fmt.Errorf("invalid delay %q", v.delayMs)
	}

	hostname := strings.TrimSpace(v.hostname)
	path := strings.TrimSpace(v.path)
	listen, respond, delay, empty := v.listen, v.respond, v.delay, v.empty
	ch := types.Change{
		Hostname:       &hostname,
		Port:           &port,
		Path:           &path,
		StatusCode:     &status,
		DelayMs:        &delayMs,
		ListenEnabled:  &listen,
		RespondEnabled: &respond,
		DelayEnabled:   &delay,
		EmptyBody:      &empty,
	}
	if file := strings.TrimSpace(v.bodyFile); file != cur.BodySource {
		ch.BodyFile = &file
	}
	return ch, nil
}

func validateInt(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return fmt.Errorf("invalid value")
	}
	return nil
}

func validatePort(s string) error {
	_, err := diag.ParsePort(strings.TrimSpace(s))
	return err
}

func buildForm(v *values, running bool) *huh.Form {
	toggleLabel := "Start server"
	if running {
		toggleLabel = "Stop server"
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Hostname").Value(&v.hostname),
			huh.NewInput().Title("Port").Value(&v.port).Validate(validatePort),
			huh.NewInput().Title("Endpoint path").Value(&v.path),
			huh.NewInput().Title("Response code").Value(&v.status).Validate(validateInt),
			huh.NewInput().Title("Response time (ms)").Value(&v.delayMs).Validate(validateInt),
			huh.NewInput().Title("Web page file").Description("Empty for none.").Value(&v.bodyFile),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Listen port").Value(&v.listen),
			huh.NewConfirm().Title("Response via HTTP").Value(&v.respond),
			huh.NewConfirm().Title("Response delay").Value(&v.delay),
			huh.NewConfirm().Title("Return empty page").Value(&v.empty),
			huh.NewSelect[string]().
				Title("Action").
				Options(
					huh.NewOption("Apply changes", actionApply),
					huh.NewOption(toggleLabel, actionToggle),
					huh.NewOption("Reset to defaults", actionReset),
					huh.NewOption("Quit", actionQuit),
				).
				Value(&v.action),
		),
	)
}

type resultMsg struct {
	state diag.State
	err   error
}

// Model is the bubbletea model of the form front end.
type Model struct {
	ctrl   Controller
	state  diag.State
	values *values
	form   *huh.Form
	log    []logMsg
	err    error
}

// New creates a model showing the controller's current state.
func New(ctrl Controller) Model {
	m := Model{ctrl: ctrl, state: ctrl.State()}
	m.resetForm()
	return m
}

func (m *Model) resetForm() {
	m.values = valuesFrom(m.state)
	m.form = buildForm(m.values, m.state.Started)
}

func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case stateMsg:
		m.state = msg.state
		return m, nil
	case logMsg:
		m.log = append(m.log, msg)
		if len(m.log) > logTail {
			m.log = m.log[len(m.log)-logTail:]
		}
		return m, nil
	case startedMsg:
		m.state.Started = msg.running
		return m, nil
	case serverErrMsg:
		m.err = msg.err
		return m, nil
	case resultMsg:
		m.state = msg.state
		m.err = msg.err
		m.resetForm()
		return m, m.form.Init()
	}

	formModel, cmd := m.form.Update(msg)
	if f, ok := formModel.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.run(m.values.action)
	case huh.StateAborted:
		return m, tea.Quit
	}
	return m, cmd
}

// run performs action off the event loop; the coordinator reports back
// through the Sink, which sends to the running program.
func (m Model) run(action string) tea.Cmd {
	ctrl := m.ctrl
	switch action {
	case actionQuit:
		return tea.Quit
	case actionToggle:
		return func() tea.Msg {
			st, err := ctrl.StartServer()
			return resultMsg{st, err}
		}
	case actionReset:
		return func() tea.Msg {
			return resultMsg{ctrl.Reset(), nil}
		}
	default:
		ch, err := m.values.change(m.state)
		if err != nil {
			return func() tea.Msg { return resultMsg{ctrl.State(), err} }
		}
		return func() tea.Msg {
			st, err := ctrl.Apply(ch)
			return resultMsg{st, err}
		}
	}
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	onStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	hiStyle    = lipgloss.NewStyle().Bold(true)
	footStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

var frameStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("12")).
	Padding(0, 1)

func flag(on bool) string {
	if on {
		return onStyle.Render("on")
	}
	return offStyle.Render("off")
}

func renderStatus(st diag.State) string {
	run := offStyle.Render("stopped")
	if st.Started {
		run = onStyle.Render("running")
	}
	if st.Error {
		run += " " + errStyle.Render("(bind error)")
	}
	page := st.BodySource
	if page == "" {
		page = "none"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Web Monitoring Diagnostics") + "\n\n")
	fmt.Fprintf(&b, "Server:        %s\n", run)
	fmt.Fprintf(&b, "Address:       %s\n", st.Addr())
	fmt.Fprintf(&b, "Endpoint path: %s\n", st.Path)
	fmt.Fprintf(&b, "Listen port:   %s\n", flag(st.ListenEnabled))
	fmt.Fprintf(&b, "Response:      %s\n", flag(st.RespondEnabled))
	fmt.Fprintf(&b, "Delay:         %s (%dms)\n", flag(st.DelayEnabled), st.DelayMs)
	fmt.Fprintf(&b, "Empty page:    %s\n", flag(st.EmptyBody))
	fmt.Fprintf(&b, "Response code: %d\n", st.StatusCode)
	fmt.Fprintf(&b, "Web page:      %s", page)
	return b.String()
}

func (m Model) renderLog() string {
	lines := make([]string, 0, len(m.log))
	for _, l := range m.log {
		switch l.level {
		case types.EventLevelError:
			lines = append(lines, errStyle.Render(l.text))
		case types.EventLevelHighlight:
			lines = append(lines, hiStyle.Render(l.text))
		default:
			lines = append(lines, l.text)
		}
	}
	if len(lines) == 0 {
		lines = append(lines, offStyle.Render("no events yet"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) View() string {
	top := lipgloss.JoinHorizontal(lipgloss.Top,
		frameStyle.Render(renderStatus(m.state)),
		frameStyle.Render(m.form.View()),
	)
	out := top + "\n" + frameStyle.Render(m.renderLog())
	if m.err != nil {
		out += "\n" + errStyle.Render("Error: "+m.err.Error())
	}
	return out + footStyle.Render("\nKeys: tab/enter=next shift+tab=back esc/ctrl+c=quit")
}

// Run shows the form until the operator quits. The sink must be the view
// and event log the controller reports to.
func Run(ctrl Controller, sink *Sink) error {
	program := tea.NewProgram(New(ctrl), tea.WithAltScreen())
	sink.Attach(program)
	_, err := program.Run()
	return err
}
