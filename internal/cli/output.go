package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/webmondiag/webmondiag/pkg/types"
)

// Output format flags (set by persistent flags in root.go)
var (
	outputJSON bool
	outputYAML bool
)

// printJSON marshals v as JSON and prints it to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML marshals v as YAML and prints it to stdout.
func printYAML(v interface{}) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

// printFormatted prints v in JSON or YAML format based on flags.
// Returns true if output was printed, false if default format should be used.
func printFormatted(v interface{}) bool {
	if outputJSON {
		if err := printJSON(v); err != nil {
			exitError("encoding JSON: %v", err)
		}
		return true
	}
	if outputYAML {
		if err := printYAML(v); err != nil {
			exitError("encoding YAML: %v", err)
		}
		return true
	}
	return false
}

// newTable returns a borderless, left-aligned table.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	if len(header) > 0 {
		table.SetHeader(header)
	}
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.SetAutoWrapText(false)
	return table
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// printStatus prints an endpoint status as a key/value table.
func printStatus(w io.Writer, st *types.Status) {
	if printFormatted(st) {
		return
	}

	server := "stopped"
	if st.Started {
		server = "running"
	}
	if st.Error {
		server += " (bind error)"
	}
	page := st.BodySource
	if page == "" {
		page = "none"
		if st.Body != "" {
			page = fmt.Sprintf("inline, %d bytes", len(st.Body))
		}
	}

	table := newTable(w)
	table.AppendBulk([][]string{
		{"Server", server},
		{"Hostname", st.Hostname},
		{"Port", fmt.Sprint(st.Port)},
		{"Endpoint path", st.Path},
		{"Listen port", onOff(st.ListenEnabled)},
		{"Response via HTTP", onOff(st.RespondEnabled)},
		{"Response delay", onOff(st.DelayEnabled)},
		{"Response time", fmt.Sprintf("%dms", st.DelayMs)},
		{"Response code", fmt.Sprint(st.StatusCode)},
		{"Return empty page", onOff(st.EmptyBody)},
		{"Web page", page},
	})
	table.Render()
}

// printEvents prints journal events as a table.
func printEvents(w io.Writer, events []*types.Event) {
	if len(events) == 0 {
		if outputJSON || outputYAML {
			fmt.Fprintln(w, "[]")
		} else {
			fmt.Fprintln(w, "No events found.")
		}
		return
	}
	if printFormatted(events) {
		return
	}

	table := newTable(w, "Time", "Session", "Level", "Event")
	for _, ev := range events {
		session := ev.SessionID
		if len(session) > 8 {
			session = session[:8]
		}
		table.Append([]string{
			ev.CreatedAt.Format("2006-01-02 15:04:05"),
			session,
			string(ev.Level),
			ev.Text,
		})
	}
	table.Render()
}
