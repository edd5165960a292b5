package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// SummaryFile is the name of the run summary written next to the event log
const SummaryFile = "summary.json"

// Summary is the outcome of one pipeline run
type Summary struct {
	RunID       string        `json:"run_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	Duration    time.Duration `json:"duration"`

	// Consolidation
	EventsDir    string `json:"events_dir,omitempty"`
	Output       string `json:"output,omitempty"`
	FilesRead    int    `json:"files_read"`
	RowsRead     int    `json:"rows_read"`
	RowsSkipped  int    `json:"rows_skipped"`
	RowsWritten  int    `json:"rows_written"`
	BytesWritten int64  `json:"bytes_written"`

	// Store
	Backend string         `json:"backend,omitempty"`
	Store   string         `json:"store,omitempty"`
	Tables  []TableSummary `json:"tables,omitempty"`
	Checks  []CheckSummary `json:"checks,omitempty"`
	Errors  []ErrorSummary `json:"errors,omitempty"`

	EventLogPath string `json:"event_log,omitempty"`
}

// TableSummary is the outcome of rebuilding one table
type TableSummary struct {
	Name         string         `json:"name"`
	RowsRead     int            `json:"rows_read"`
	RowsInserted int            `json:"rows_inserted"`
	Failures     map[string]int `json:"failures,omitempty"` // by kind
	Duration     time.Duration  `json:"duration"`
}

// FailureCount returns the total number of failures for the table
func (t TableSummary) FailureCount() int {
	n := 0
	for _, c := range t.Failures {
		n += c
	}
	return n
}

// CheckSummary is the outcome of one read-back check
type CheckSummary struct {
	Name  string `json:"name"`
	Table string `json:"table"`
	Rows  int    `json:"rows"`
	Error string `json:"error,omitempty"`
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string `json:"error"`
	Count int    `json:"count"`
}

// Failed reports whether any table or check failed
func (s *Summary) Failed() bool {
	for _, t := range s.Tables {
		if t.FailureCount() > 0 {
			return true
		}
	}
	for _, c := range s.Checks {
		if c.Error != "" {
			return true
		}
	}
	return false
}

// AddError counts one occurrence of msg
func (s *Summary) AddError(msg string) {
	for i := range s.Errors {
		if s.Errors[i].Error == msg {
			s.Errors[i].Count++
			return
		}
	}
	s.Errors = append(s.Errors, ErrorSummary{Error: msg, Count: 1})
}

// TopErrors returns the most common errors, most frequent first
func (s *Summary) TopErrors(limit int) []ErrorSummary {
	errs := make([]ErrorSummary, len(s.Errors))
	copy(errs, s.Errors)

	sort.SliceStable(errs, func(i, j int) bool {
		return errs[i].Count > errs[j].Count
	})

	if len(errs) > limit {
		errs = errs[:limit]
	}
	return errs
}

// Save writes the summary as JSON
func (s *Summary) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// LoadSummary reads a summary written by Save
func LoadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode summary %s: %w", path, err)
	}
	return &s, nil
}

// WriteMarkdownReport writes the summary as Markdown
func WriteMarkdownReport(report *Summary, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// RenderMarkdown renders the summary as a Markdown document
func RenderMarkdown(report *Summary) string {
	var md strings.Builder

	md.WriteString("# Playlog - Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.RunID != "" {
		md.WriteString(fmt.Sprintf("**Run:** `%s`\n\n", report.RunID))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}
	if report.Duration > 0 {
		md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", report.Duration.Round(time.Millisecond)))
	}

	md.WriteString("---\n\n")

	// Consolidation
	if report.FilesRead > 0 || report.Output != "" {
		md.WriteString("## Consolidation\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		if report.EventsDir != "" {
			md.WriteString(fmt.Sprintf("| Source | `%s` |\n", report.EventsDir))
		}
		md.WriteString(fmt.Sprintf("| Files Read | %d |\n", report.FilesRead))
		md.WriteString(fmt.Sprintf("| Rows Read | %s |\n", humanize.Comma(int64(report.RowsRead))))
		if report.RowsSkipped > 0 {
			md.WriteString(fmt.Sprintf("| Rows Skipped (no artist) | %s |\n", humanize.Comma(int64(report.RowsSkipped))))
		}
		md.WriteString(fmt.Sprintf("| Rows Written | %s |\n", humanize.Comma(int64(report.RowsWritten))))
		md.WriteString(fmt.Sprintf("| Bytes Written | %s |\n", humanize.Bytes(uint64(report.BytesWritten))))
		if report.Output != "" {
			md.WriteString(fmt.Sprintf("| Output | `%s` |\n", report.Output))
		}
		md.WriteString("\n")
	}

	// Tables
	if len(report.Tables) > 0 {
		md.WriteString("## Tables\n\n")
		if report.Backend != "" {
			md.WriteString(fmt.Sprintf("Store: %s", report.Backend))
			if report.Store != "" {
				md.WriteString(fmt.Sprintf(" (`%s`)", report.Store))
			}
			md.WriteString("\n\n")
		}
		md.WriteString("| Table | Rows Read | Rows Inserted | Failures | Time |\n")
		md.WriteString("|-------|-----------|---------------|----------|------|\n")
		for _, t := range report.Tables {
			md.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				t.Name,
				humanize.Comma(int64(t.RowsRead)),
				humanize.Comma(int64(t.RowsInserted)),
				formatFailures(t.Failures),
				t.Duration.Round(time.Millisecond)))
		}
		md.WriteString("\n")
	}

	// Checks
	if len(report.Checks) > 0 {
		md.WriteString("## Checks\n\n")
		md.WriteString("| Check | Table | Rows | Status |\n")
		md.WriteString("|-------|-------|------|--------|\n")
		for _, c := range report.Checks {
			status := "ok"
			if c.Error != "" {
				status = "failed: " + c.Error
			} else if c.Rows == 0 {
				status = "no rows"
			}
			md.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n", c.Name, c.Table, c.Rows, status))
		}
		md.WriteString("\n")
	}

	// Errors
	if top := report.TopErrors(10); len(top) > 0 {
		md.WriteString("## Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, err := range top {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", err.Count, truncate(err.Error, 120)))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by playlog*\n")

	return md.String()
}

// formatFailures renders failure counts by kind, e.g. "3 (insert 3)"
func formatFailures(byKind map[string]int) string {
	total := 0
	kinds := make([]string, 0, len(byKind))
	for k, n := range byKind {
		if n == 0 {
			continue
		}
		total += n
		kinds = append(kinds, k)
	}
	if total == 0 {
		return "0"
	}
	sort.Strings(kinds)

	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s %d", k, byKind[k])
	}
	return fmt.Sprintf("%d (%s)", total, strings.Join(parts, ", "))
}

// truncate shortens s to maxLen, keeping the start and end
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	start := maxLen/2 - 2
	end := len(s) - (maxLen/2 - 2)
	return s[:start] + "..." + s[end:]
}
