// Package cli provides the command-line interface for webmondiag.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webmondiag/webmondiag/internal/config"
)

// version is overridden at build time with -ldflags "-X".
var version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "webmondiag",
	Short: "Web Monitoring Diagnostics - a controllable faulty HTTP endpoint",
	Long: `webmondiag runs an HTTP endpoint whose behaviour can be changed while it
is running: it can stop listening, accept connections but never answer,
answer late, answer with any status code or body, or answer with an empty
body. Use it to check how monitoring agents and HTTP clients cope with an
unreliable server.

Examples:
  webmondiag serve -p 8080                 # endpoint with the line console
  webmondiag serve -p 8080 --headless      # endpoint driven by the control API
  webmondiag form -p 8080                  # endpoint with the terminal form
  webmondiag ctl set --status-code 503     # change a running endpoint
  webmondiag ctl toggle                    # start or stop it
  webmondiag history sessions              # review past runs`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/webmondiag/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&outputYAML, "yaml", false, "output in YAML format")

	// Add subcommands
	rootCmd.AddCommand(ctlCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("webmondiag version %s\n", version)
	},
}

// loadConfig loads the configuration or exits.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		exitError("failed to load config: %v", err)
	}
	return cfg
}

// exitError prints an error message and exits.
func exitError(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(1)
}
