package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webmondiag/webmondiag/internal/journal"
	"github.com/webmondiag/webmondiag/internal/journal/sqlite"
)

var (
	historySession string
	historyLimit   int
)

// historyCmd lists journaled events.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the event journal",
	Long: `Show events journaled by past and running webmondiag processes.

Every run is one session. Without --session the newest events of all
sessions are listed.`,
	Args: cobra.NoArgs,
	Run:  runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List journaled events",
	Args:    cobra.NoArgs,
	Run:     runHistoryList,
}

var historySessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List journaled sessions",
	Args:  cobra.NoArgs,
	Run:   runHistorySessions,
}

func init() {
	for _, c := range []*cobra.Command{historyCmd, historyListCmd} {
		c.Flags().StringVarP(&historySession, "session", "s", "", "only events of this session")
		c.Flags().IntVarP(&historyLimit, "limit", "l", 50, "maximum number of events (0 for all)")
	}

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historySessionsCmd)
}

func openHistory(cmd *cobra.Command) *sqlite.SQLiteStorage {
	cfg := loadConfig()
	if _, err := os.Stat(cfg.Journal.Path); os.IsNotExist(err) {
		exitError("no journal at %s", cfg.Journal.Path)
	}
	store, err := openJournal(cmd.Context(), cfg.Journal.Path)
	if err != nil {
		exitError("%v", err)
	}
	return store
}

func runHistoryList(cmd *cobra.Command, args []string) {
	store := openHistory(cmd)
	defer store.Close()

	events, err := store.List(cmd.Context(), journal.ListOptions{
		SessionID: historySession,
		Limit:     historyLimit,
	})
	if err != nil {
		exitError("failed to list events: %v", err)
	}
	printEvents(os.Stdout, events)
}

func runHistorySessions(cmd *cobra.Command, args []string) {
	store := openHistory(cmd)
	defer store.Close()

	sessions, err := store.Sessions(cmd.Context())
	if err != nil {
		exitError("failed to list sessions: %v", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return
	}
	if printFormatted(sessions) {
		return
	}

	table := newTable(os.Stdout, "Session", "Started", "Last event", "Events", "Errors")
	for _, s := range sessions {
		table.Append([]string{
			s.ID,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.LastAt.Format("2006-01-02 15:04:05"),
			fmt.Sprint(s.Events),
			fmt.Sprint(s.Errors),
		})
	}
	table.Render()
}
