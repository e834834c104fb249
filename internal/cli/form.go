package cli

import (
	"github.com/spf13/cobra"

	"github.com/webmondiag/webmondiag/internal/form"
)

// formCmd runs the endpoint with the full-screen form.
var formCmd = &cobra.Command{
	Use:   "form",
	Short: "Run the diagnostic endpoint with a terminal form",
	Long: `Run the diagnostic endpoint and control it from a full-screen form.

The form shows every endpoint setting, a live status panel and the tail of
the event log. Pick "Apply" to submit edited fields, or start, stop and
reset the endpoint from the action list. Process logs go to the configured
log file only while the form owns the terminal.

Example:
  webmondiag form -p 8080`,
	Args: cobra.NoArgs,
	Run:  runForm,
}

func init() {
	addEndpointFlags(formCmd)
	rootCmd.AddCommand(formCmd)
}

func runForm(cmd *cobra.Command, args []string) {
	sink := form.NewSink()
	rt, err := bootstrap(cmd, frontEnd{view: sink, log: sink, ownsTerminal: true})
	if err != nil {
		exitError("%v", err)
	}

	if _, err := rt.coord.StartServer(); err != nil {
		rt.close()
		exitError("%v", err)
	}

	err = form.Run(rt.coord, sink)
	rt.close()
	if err != nil {
		exitError("form: %v", err)
	}
}
