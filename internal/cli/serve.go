package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveHeadless bool

// serveCmd runs the endpoint with the line console.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the diagnostic endpoint",
	Long: `Run the diagnostic endpoint and control it from a line console.

The endpoint starts immediately. Single-key commands switch the fault modes
while it runs; type 9 to show the current state and q to quit. With
--headless there is no console and the endpoint is driven through the
control API (see "webmondiag ctl") until interrupted.

Example:
  webmondiag serve -p 8080
  webmondiag serve -n 0.0.0.0 -p 8080 --path /health
  webmondiag serve -p 8080 --headless`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	addEndpointFlags(serveCmd)
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", false, "run without the console")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	var fe frontEnd
	var console *Console
	if !serveHeadless {
		console = NewConsole(os.Stdin, os.Stdout)
		fe = frontEnd{view: console, log: console}
	}

	rt, err := bootstrap(cmd, fe)
	if err != nil {
		exitError("%v", err)
	}

	if _, err := rt.coord.StartServer(); err != nil {
		rt.close()
		exitError("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if console != nil {
		if err := console.Run(ctx, rt.coord); err != nil {
			rt.logger.WithError(err).Warn("reading console input")
		}
	} else {
		rt.logger.WithField("addr", rt.coord.State().Addr()).Info("endpoint running, press Ctrl+C to stop")
		<-ctx.Done()
	}

	rt.logger.Info("shutting down")
	rt.close()
}
