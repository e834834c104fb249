package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/webmondiag/webmondiag/internal/client"
	"github.com/webmondiag/webmondiag/pkg/types"
)

var (
	ctlAddr    string
	ctlTimeout time.Duration

	ctlEventsSession string
	ctlEventsLimit   int
)

// Flags of "ctl set"; only the ones given on the command line are sent.
var (
	setHostname   string
	setPort       uint16
	setPath       string
	setListen     bool
	setRespond    bool
	setDelay      bool
	setDelayMs    int
	setStatusCode int
	setEmptyBody  bool
	setBody       string
	setBodyFile   string
)

// ctlCmd is the parent command for control API operations.
var ctlCmd = &cobra.Command{
	Use:   "ctl",
	Short: "Control a running endpoint",
	Long: `Commands that drive a running webmondiag through its control API.

The API address defaults to control.addr from the configuration.`,
}

var ctlStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the endpoint state",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c, ctx, cancel := ctlClient(cmd)
		defer cancel()
		st, err := c.State(ctx)
		ctlResult(st, err)
	},
}

var ctlSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change endpoint settings",
	Long: `Change one or more endpoint settings. Only the flags given are sent.
Valid changes are kept even when another one is rejected.

Example:
  webmondiag ctl set --status-code 503
  webmondiag ctl set --respond=false
  webmondiag ctl set --delay --delay-ms 2000
  webmondiag ctl set --port 9090 --path /health`,
	Args: cobra.NoArgs,
	Run:  runCtlSet,
}

var ctlToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Start a stopped endpoint or stop a running one",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c, ctx, cancel := ctlClient(cmd)
		defer cancel()
		st, err := c.Toggle(ctx)
		ctlResult(st, err)
	},
}

var ctlStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the endpoint",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c, ctx, cancel := ctlClient(cmd)
		defer cancel()
		st, err := c.Stop(ctx)
		ctlResult(st, err)
	},
}

var ctlResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Stop the endpoint and restore every default",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c, ctx, cancel := ctlClient(cmd)
		defer cancel()
		st, err := c.Reset(ctx)
		ctlResult(st, err)
	},
}

var ctlEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the event log of the running endpoint",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c, ctx, cancel := ctlClient(cmd)
		defer cancel()
		list, err := c.Events(ctx, ctlEventsSession, ctlEventsLimit)
		if err != nil {
			ctlExit(err)
		}
		printEvents(os.Stdout, list.Events)
	},
}

func init() {
	ctlCmd.PersistentFlags().StringVar(&ctlAddr, "addr", "", "control API address (default from config)")
	ctlCmd.PersistentFlags().DurationVar(&ctlTimeout, "timeout", 10*time.Second, "request timeout")

	f := ctlSetCmd.Flags()
	f.StringVarP(&setHostname, "hostname", "n", "", "hostname or address to bind")
	f.Uint16VarP(&setPort, "port", "p", 0, "port to listen on")
	f.StringVar(&setPath, "path", "", "endpoint path")
	f.BoolVar(&setListen, "listen", true, "accept connections")
	f.BoolVar(&setRespond, "respond", true, "answer accepted requests")
	f.BoolVar(&setDelay, "delay", true, "delay answers")
	f.IntVar(&setDelayMs, "delay-ms", 0, "answer delay in milliseconds")
	f.IntVarP(&setStatusCode, "status-code", "c", 0, "HTTP status code")
	f.BoolVar(&setEmptyBody, "empty-body", true, "answer with an empty body")
	f.StringVar(&setBody, "body", "", "response body text")
	f.StringVar(&setBodyFile, "body-file", "", "load the response body from a file on the endpoint host (empty clears)")
	ctlSetCmd.MarkFlagsMutuallyExclusive("body", "body-file")

	ctlEventsCmd.Flags().StringVar(&ctlEventsSession, "session", "current", `session id, "current" or empty for all`)
	ctlEventsCmd.Flags().IntVar(&ctlEventsLimit, "limit", 20, "maximum number of events")

	ctlCmd.AddCommand(ctlStatusCmd)
	ctlCmd.AddCommand(ctlSetCmd)
	ctlCmd.AddCommand(ctlToggleCmd)
	ctlCmd.AddCommand(ctlStopCmd)
	ctlCmd.AddCommand(ctlResetCmd)
	ctlCmd.AddCommand(ctlEventsCmd)
}

func runCtlSet(cmd *cobra.Command, args []string) {
	ch := setChange(cmd)
	if ch.IsEmpty() {
		exitError("no settings given (see --help)")
	}

	c, ctx, cancel := ctlClient(cmd)
	defer cancel()
	st, err := c.Apply(ctx, ch)
	ctlResult(st, err)
}

// setChange collects the flags given explicitly.
func setChange(cmd *cobra.Command) types.Change {
	f := cmd.Flags()
	var ch types.Change
	if f.Changed("hostname") {
		ch.Hostname = &setHostname
	}
	if f.Changed("port") {
		ch.Port = &setPort
	}
	if f.Changed("path") {
		ch.Path = &setPath
	}
	if f.Changed("listen") {
		ch.ListenEnabled = &setListen
	}
	if f.Changed("respond") {
		ch.RespondEnabled = &setRespond
	}
	if f.Changed("delay") {
		ch.DelayEnabled = &setDelay
	}
	if f.Changed("delay-ms") {
		ch.DelayMs = &setDelayMs
	}
	if f.Changed("status-code") {
		ch.StatusCode = &setStatusCode
	}
	if f.Changed("empty-body") {
		ch.EmptyBody = &setEmptyBody
	}
	if f.Changed("body") {
		ch.Body = &setBody
	}
	if f.Changed("body-file") {
		ch.BodyFile = &setBodyFile
	}
	return ch
}

// ctlClient builds a client for the configured control address.
func ctlClient(cmd *cobra.Command) (*client.Client, context.Context, context.CancelFunc) {
	addr := ctlAddr
	if addr == "" {
		addr = loadConfig().Control.Addr
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, ctlTimeout)
	return client.New(addr), ctx, cancel
}

// ctlResult prints st, or the refusal and the state that stayed in effect.
func ctlResult(st *types.Status, err error) {
	if err == nil {
		printStatus(os.Stdout, st)
		return
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.State != nil {
		printStatus(os.Stdout, apiErr.State)
		fmt.Println()
	}
	ctlExit(err)
}

func ctlExit(err error) {
	var connErr *client.ConnectionError
	if errors.As(err, &connErr) {
		exitError("%v (is webmondiag running with the control API enabled?)", err)
	}
	exitError("%v", err)
}
