package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) any {
	t.Helper()

	var v any
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestSummariesFromRPC(t *testing.T) {
	t.Run("array of summaries", func(t *testing.T) {
		result := decode(t, `[
			{"report_id":1,"title":"Weekly ops","status":"done","window":"7d","created_at":"2026-08-18"},
			{"report_id":2,"title":"Error budget","status":"running","window":"30d","created_at":"2026-08-24"}
		]`)

		summaries, err := SummariesFromRPC(result)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, int64(1), summaries[0].ID)
		assert.Equal(t, "Error budget", summaries[1].Title)
	})

	t.Run("single summary object", func(t *testing.T) {
		result := decode(t, `{"report_id":7,"title":"Weekly ops","status":"done"}`)

		summaries, err := SummariesFromRPC(result)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, int64(7), summaries[0].ID)
	})
}

func TestFromRPC(t *testing.T) {
	result := decode(t, `{
		"report_id":7,
		"title":"Weekly ops",
		"window":"7d",
		"generated_at":"2026-08-25T08:00:00Z",
		"sections":[{"heading":"Availability","body":"99.95% over the window."}]
	}`)

	r, err := FromRPC(result)
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.ID)
	require.Len(t, r.Sections, 1)
	assert.Equal(t, "Availability", r.Sections[0].Heading)
}

func TestRenderTable(t *testing.T) {
	out := RenderTable([]Summary{
		{ID: 1, Title: "Weekly ops", Status: "done", Window: "7d", CreatedAt: "2026-08-18"},
	})

	assert.Contains(t, out, "Weekly ops")
	assert.Contains(t, out, "7d")
	assert.Contains(t, out, "ID")
}

func TestRenderTable_TruncatesLongTitles(t *testing.T) {
	long := strings.Repeat("availability and error budget ", 5)
	out := RenderTable([]Summary{
		{ID: 1, Title: long, Status: "done", Window: "7d"},
	})

	assert.Contains(t, out, "...")
	assert.NotContains(t, out, long)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{"short string untouched", "weekly ops", 60, "weekly ops"},
		{"newlines collapsed", "weekly\nops  report", 60, "weekly ops report"},
		{"long string cut with ellipsis", "abcdefghij", 8, "abcde..."},
		{"unicode cut on rune boundary", "日本語のレポート", 6, "日本語..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.in, tt.maxLen))
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(&Report{
		Title:       "Weekly ops",
		Window:      "7d",
		GeneratedAt: "2026-08-25T08:00:00Z",
		Sections: []Section{
			{Heading: "Availability", Body: "99.95% over the window."},
			{Heading: "Alerts", Body: "3 pages, 1 actionable."},
		},
	})

	assert.True(t, strings.HasPrefix(md, "# Weekly ops\n"))
	assert.Contains(t, md, "## Availability")
	assert.Contains(t, md, "## Alerts")
	assert.Contains(t, md, "99.95% over the window.")
	assert.True(t, strings.HasSuffix(md, "\n"))
}
