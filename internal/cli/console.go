package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/webmondiag/webmondiag/internal/diag"
	"github.com/webmondiag/webmondiag/pkg/types"
)

// consoleController is the part of diag.Coordinator the console drives.
type consoleController interface {
	SetHostname(host string) (diag.State, error)
	SetPort(port uint16) (diag.State, error)
	SetPath(path string) (diag.State, error)
	SetListenEnabled(on bool) (diag.State, error)
	SetRespondEnabled(on bool) (diag.State, error)
	SetDelayEnabled(on bool) (diag.State, error)
	SetDelayMs(ms int) (diag.State, error)
	SetStatusCode(code int) (diag.State, error)
	SetEmptyBody(on bool) (diag.State, error)
	SetBodyContent(body string) (diag.State, error)
	SetBodyFromFile(path string) (diag.State, error)
	StartServer() (diag.State, error)
	Reset() diag.State
}

// Console is the line-oriented front end of serve. It mirrors the last
// echoed state and reads single-key commands from its input.
type Console struct {
	in  io.Reader
	out io.Writer

	mu     sync.Mutex
	mirror diag.State
	menu   bool
}

// NewConsole creates a console reading commands from in.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out, mirror: diag.DefaultState()}
}

// Echo implements diag.View.
func (c *Console) Echo(field diag.Field, st diag.State) {
	c.mu.Lock()
	c.mirror = st
	c.mu.Unlock()
}

// ShowStarted implements diag.View. The menu is printed on the first start.
func (c *Console) ShowStarted(running bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mirror.Started = running
	if running && !c.menu {
		c.menu = true
		c.writeState()
		c.writeMenu()
	}
}

// ShowError implements diag.View. The failure itself is narrated by Log.
func (c *Console) ShowError(err error) {
	c.mu.Lock()
	c.mirror.Error = true
	c.mu.Unlock()
}

// Log implements diag.EventLog.
func (c *Console) Log(level types.EventLevel, text string) {
	c.mu.Lock()
	fmt.Fprintf(c.out, " %s\n", text)
	c.mu.Unlock()
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	fmt.Fprintf(c.out, format, args...)
	c.mu.Unlock()
}

func (c *Console) state() diag.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror
}

func (c *Console) writeMenu() {
	fmt.Fprint(c.out, `
 === Web Monitoring Diagnostics ===
	 1 - On/Off port listening
	 2 - On/Off response via HTTP
	 3 - On/Off response delay
	 4 - On/Off return empty page
	 5 - Set response time (ms)
	 6 - Set response code
	 7 - Set custom web page
	 8 - Set endpoint path
	 9 - Show state
	 h - Set hostname
	 n - Set port
	 b - Set response body text
	 s - Start/Stop server
	 r - Reset to defaults
	 q - Quit
`)
}

func (c *Console) writeState() {
	st := c.mirror
	page := st.BodySource
	if page == "" {
		page = "none"
	}
	fmt.Fprintf(c.out, "\n Hostname: %s\n", st.Hostname)
	fmt.Fprintf(c.out, " Port: %d\n", st.Port)
	fmt.Fprintf(c.out, " Endpoint path: %s\n", st.Path)
	fmt.Fprintf(c.out, " Listen port: %t\n", st.ListenEnabled)
	fmt.Fprintf(c.out, " Response via HTTP: %t\n", st.RespondEnabled)
	fmt.Fprintf(c.out, " Response delay: %t\n", st.DelayEnabled)
	fmt.Fprintf(c.out, " Return empty page: %t\n", st.EmptyBody)
	fmt.Fprintf(c.out, " Response time: %d(ms)\n", st.DelayMs)
	fmt.Fprintf(c.out, " Response code: %d\n", st.StatusCode)
	fmt.Fprintf(c.out, " Web page: %s\n", page)
	fmt.Fprintf(c.out, " Server: %s\n", runState(st))
}

func runState(st diag.State) string {
	switch {
	case st.Started:
		return "running"
	case st.Error:
		return "stopped (error)"
	default:
		return "stopped"
	}
}

// Run reads commands until q, end of input or ctx is done.
func (c *Console) Run(ctx context.Context, ctrl consoleController) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
		close(lines)
	}()

	next := func() (string, bool) {
		select {
		case <-ctx.Done():
			return "", false
		case line, ok := <-lines:
			return strings.TrimSpace(line), ok
		}
	}

	for {
		cmd, ok := next()
		if !ok {
			select {
			case err := <-errc:
				return err
			default:
				return nil
			}
		}
		if cmd == "" {
			continue
		}

		quit, ok := c.exec(ctrl, cmd, func(prompt string) (string, bool) {
			c.printf("%s", prompt)
			return next()
		})
		if quit || !ok {
			return nil
		}
	}
}

// exec runs one command. ask prompts for and reads a value line.
func (c *Console) exec(ctrl consoleController, cmd string, ask func(string) (string, bool)) (quit, ok bool) {
	st := c.state()

	switch strings.ToLower(cmd) {
	case "1":
		ctrl.SetListenEnabled(!st.ListenEnabled)
	case "2":
		ctrl.SetRespondEnabled(!st.RespondEnabled)
	case "3":
		ctrl.SetDelayEnabled(!st.DelayEnabled)
	case "4":
		ctrl.SetEmptyBody(!st.EmptyBody)
	case "5":
		v, ok := ask("Enter new response time (ms): ")
		if !ok {
			return false, false
		}
		ms, err := strconv.Atoi(v)
		if err != nil {
			c.printf("Invalid value\n")
			return false, true
		}
		ctrl.SetDelayMs(ms)
	case "6":
		v, ok := ask("Enter HTTP code: ")
		if !ok {
			return false, false
		}
		code, err := strconv.Atoi(v)
		if err != nil {
			c.printf("Invalid value\n")
			return false, true
		}
		ctrl.SetStatusCode(code)
	case "7":
		v, ok := ask("Enter path to web page file (empty for none): ")
		if !ok {
			return false, false
		}
		ctrl.SetBodyFromFile(v)
	case "8":
		v, ok := ask("Enter path: ")
		if !ok {
			return false, false
		}
		ctrl.SetPath(v)
	case "9":
		c.mu.Lock()
		c.writeState()
		c.mu.Unlock()
	case "h":
		v, ok := ask("Enter hostname: ")
		if !ok {
			return false, false
		}
		ctrl.SetHostname(v)
	case "n":
		v, ok := ask("Enter port: ")
		if !ok {
			return false, false
		}
		port, err := diag.ParsePort(v)
		if err != nil {
			c.printf("Invalid value\n")
			return false, true
		}
		ctrl.SetPort(port)
	case "b":
		v, ok := ask("Enter response body: ")
		if !ok {
			return false, false
		}
		ctrl.SetBodyContent(v)
	case "s":
		ctrl.StartServer()
	case "r":
		ctrl.Reset()
	case "m", "?":
		c.mu.Lock()
		c.writeMenu()
		c.mu.Unlock()
	case "q":
		return true, true
	default:
		c.printf("Unknown command\n")
	}
	return false, true
}
