package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/playlog/internal/events"
	"github.com/franz/playlog/internal/loader"
	"github.com/franz/playlog/internal/report"
	"github.com/franz/playlog/internal/store"
	"github.com/franz/playlog/internal/util"
	"github.com/franz/playlog/internal/verify"
)

// consolidateStep merges every event file under dir into output
func consolidateStep(dir, output string, logger *report.EventLogger, summary *report.Summary) error {
	util.InfoLog("=== Consolidating %s ===", dir)
	start := time.Now()

	paths, err := events.Discover(dir)
	if err != nil {
		logger.LogError(report.EventConsolidate, dir, err)
		return err
	}
	util.InfoLog("Found %d event files", len(paths))

	result, err := events.Consolidate(paths, output)
	if err != nil {
		logger.LogError(report.EventConsolidate, output, err)
		return err
	}
	duration := time.Since(start)

	util.SuccessLog("Wrote %s rows to %s (%s) in %v",
		humanize.Comma(int64(result.RowsWritten)), result.Dest,
		humanize.Bytes(uint64(result.BytesWritten)), duration.Round(time.Millisecond))
	if result.RowsSkipped > 0 {
		util.InfoLog("  Rows without artist skipped: %d", result.RowsSkipped)
	}
	logger.LogConsolidate(result.Dest, result.Files, result.RowsRead, result.RowsSkipped,
		result.RowsWritten, result.BytesWritten, duration)

	addConsolidation(summary, dir, result)
	return nil
}

// loadStep rebuilds the lookup tables from the consolidated file. The
// returned error is set only when the file could not be read.
func loadStep(ctx context.Context, session store.Session, csvPath string, logger *report.EventLogger, summary *report.Summary) (*loader.Report, error) {
	util.InfoLog("=== Loading %s into %s ===", csvPath, session.Describe())

	l := loader.New(&loader.Config{
		Session:  session,
		Logger:   logger,
		Progress: util.ShowProgress(),
	})

	rep, err := l.RebuildAll(ctx, csvPath)
	if rep != nil {
		addLoad(summary, rep)
	}
	if err != nil {
		logger.LogError(report.EventTable, csvPath, err)
		return rep, fmt.Errorf("load failed: %w", err)
	}
	return rep, nil
}

// verifyStep reads the known keys back and logs what came back
func verifyStep(ctx context.Context, session store.Session, logger *report.EventLogger, summary *report.Summary) []*verify.Result {
	util.InfoLog("=== Verifying ===")

	results := verify.Run(ctx, session, logger)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if len(r.Rows) == 0 {
			util.WarnLog("%s (%s): no rows", r.Check.Name, r.Check.Table)
			continue
		}
		util.SuccessLog("%s (%s): %d rows", r.Check.Name, r.Check.Table, len(r.Rows))
		for _, rec := range r.Rows {
			util.InfoLog("  %s", r.Check.Format(rec))
		}
	}

	addChecks(summary, results)
	return results
}

func addConsolidation(s *report.Summary, dir string, r *events.Result) {
	s.EventsDir = dir
	s.Output = r.Dest
	s.FilesRead = r.Files
	s.RowsRead = r.RowsRead
	s.RowsSkipped = r.RowsSkipped
	s.RowsWritten = r.RowsWritten
	s.BytesWritten = r.BytesWritten
}

func addLoad(s *report.Summary, rep *loader.Report) {
	for _, t := range rep.Tables {
		ts := report.TableSummary{
			Name:         t.Table,
			RowsRead:     t.RowsRead,
			RowsInserted: t.RowsInserted,
			Duration:     t.Duration,
		}
		if t.Failed() {
			ts.Failures = map[string]int{}
			for _, f := range t.Failures {
				ts.Failures[string(f.Kind)]++
				s.AddError(f.Err.Error())
			}
		}
		s.Tables = append(s.Tables, ts)
	}
}

func addChecks(s *report.Summary, results []*verify.Result) {
	for _, r := range results {
		cs := report.CheckSummary{
			Name:  r.Check.Name,
			Table: r.Check.Table,
			Rows:  len(r.Rows),
		}
		if r.Err != nil {
			cs.Error = r.Err.Error()
			s.AddError(cs.Error)
		}
		s.Checks = append(s.Checks, cs)
	}
}

// newSummary starts the summary for one command invocation
func newSummary(logger *report.EventLogger) *report.Summary {
	return &report.Summary{
		RunID:        logger.RunID(),
		GeneratedAt:  time.Now(),
		EventLogPath: logger.Path(),
	}
}

// saveSummary finishes and writes the run summary. Failing to write it is
// logged, never fatal.
func saveSummary(s *report.Summary, start time.Time) {
	s.Duration = time.Since(start)
	if err := s.Save(summaryPath()); err != nil {
		util.WarnLog("Failed to save run summary: %v", err)
		return
	}
	util.DebugLog("Run summary: %s", summaryPath())
}

// failIfStrict turns recorded statement failures into an error when
// --strict is set
func failIfStrict(strict bool, summary *report.Summary) error {
	if !summary.Failed() {
		return nil
	}
	util.WarnLog("Completed with failures; see %s", summaryPath())
	if strict {
		return fmt.Errorf("statement failures recorded (--strict)")
	}
	return nil
}
