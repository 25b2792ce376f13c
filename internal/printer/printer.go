// Package printer renders check state for terminals.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/leozw/zone-health/internal/core"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
)

var (
	statusHealthy     = color.New(color.FgGreen).SprintFunc()
	statusWarning     = color.New(color.FgYellow).Add(color.Bold).SprintFunc()
	statusError       = color.New(color.FgRed).SprintFunc()
	statusUnavailable = color.New(color.FgMagenta).SprintFunc()
	statusMuted       = color.New(color.FgHiBlack).SprintFunc()
)

// Row is one check as shown in a listing.
type Row struct {
	Info    core.Info
	Outcome core.Outcome
}

// ValidateFormat rejects unknown output formats.
func ValidateFormat(format string) error {
	switch format {
	case FormatTable, FormatJSON:
		return nil
	}
	return fmt.Errorf("unsupported output format: %s (supported: table, json)", format)
}

// Status colors a status name.
func Status(s core.Status) string {
	switch s {
	case core.StatusHealthy:
		return statusHealthy(string(s))
	case core.StatusWarning:
		return statusWarning(string(s))
	case core.StatusError:
		return statusError(string(s))
	case core.StatusUnavailable:
		return statusUnavailable(string(s))
	}
	return statusMuted(string(s))
}

// JSON writes v indented.
func JSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode as JSON: %w", err)
	}
	return nil
}

func newTable(w io.Writer, headers ...string) *tablewriter.Table {
	table := tablewriter.NewTable(w).Options(tablewriter.WithRendition(
		tw.Rendition{
			Settings: tw.Settings{
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		}),
	)
	table.Header(headers)
	return table
}

// Checks renders one line per check.
func Checks(w io.Writer, rows []Row) error {
	table := newTable(w, "ID", "NAME", "STATUS", "INTERVAL", "LAST RUN", "MESSAGE")
	for _, r := range rows {
		lastRun := core.NotAvailable
		if !r.Outcome.Timestamp.IsZero() {
			lastRun = r.Outcome.Timestamp.Local().Format("2006-01-02 15:04:05")
		}
		if err := table.Append([]any{
			r.Info.ID,
			r.Info.Name,
			Status(r.Outcome.Status),
			fmt.Sprintf("%ds", r.Info.IntervalSeconds),
			lastRun,
			truncate(r.Outcome.Message, 80),
		}); err != nil {
			return fmt.Errorf("failed to append rows: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

// Counters renders the status tally in display order.
func Counters(w io.Writer, counters core.StatusCounters, checking bool) error {
	table := newTable(w, "STATUS", "CHECKS")
	for _, s := range core.Statuses {
		if err := table.Append([]any{Status(s), counters[s]}); err != nil {
			return fmt.Errorf("failed to append rows: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	if checking {
		_, err := fmt.Fprintln(w, statusWarning("A run of all checks is in progress."))
		return err
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
