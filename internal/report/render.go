// Package report renders backend report payloads for the terminal.
// Presentation glue only: it consumes the already-normalized RPC results
// and has no transport or retry concerns of its own.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Summary is one row of the report listing returned by list_reports.
type Summary struct {
	ID        int64  `json:"report_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Window    string `json:"window"`
	CreatedAt string `json:"created_at"`
}

// Section is one block of a generated report.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Report is the full payload returned by generate_report / get_report.
type Report struct {
	ID          int64     `json:"report_id"`
	Title       string    `json:"title"`
	Window      string    `json:"window"`
	GeneratedAt string    `json:"generated_at"`
	Sections    []Section `json:"sections"`
}

// SummariesFromRPC decodes a normalized RPC result into report summaries.
// Accepts both a single object and an array of objects.
func SummariesFromRPC(result any) ([]Summary, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("unexpected list_reports response: %w", err)
	}

	var summaries []Summary
	if err := json.Unmarshal(data, &summaries); err == nil {
		return summaries, nil
	}

	var single Summary
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("unexpected list_reports response: %w", err)
	}
	return []Summary{single}, nil
}

// FromRPC decodes a normalized RPC result into a Report.
func FromRPC(result any) (*Report, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("unexpected report response: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unexpected report response: %w", err)
	}
	return &r, nil
}

// titleMaxLen bounds the Title column so one verbose report does not blow
// up the table width.
const titleMaxLen = 60

// RenderTable renders report summaries as a terminal table.
func RenderTable(summaries []Summary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Title", "Status", "Window", "Created"})
	for _, s := range summaries {
		t.AppendRow(table.Row{s.ID, truncate(s.Title, titleMaxLen), s.Status, s.Window, s.CreatedAt})
	}
	return t.Render()
}

// truncate collapses whitespace to a single line and cuts the string to
// maxLen runes, appending "..." when something was dropped.
func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen < 4 {
		maxLen = 4
	}
	return string(runes[:maxLen-3]) + "..."
}

// RenderMarkdown renders a full report as markdown.
func RenderMarkdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	if r.Window != "" {
		fmt.Fprintf(&b, "Window: %s\n", r.Window)
	}
	if r.GeneratedAt != "" {
		fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt)
	}
	b.WriteString("\n")

	for _, s := range r.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Heading, s.Body)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
