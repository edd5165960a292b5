package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/franz/playlog/internal/events"
	"github.com/franz/playlog/internal/report"
	"github.com/franz/playlog/internal/store"
	"github.com/franz/playlog/internal/util"
	"github.com/schollz/progressbar/v3"
	"github.com/zeebo/errs"
)

// Error classes for the statements a rebuild issues
var (
	DropError   = errs.Class("drop")
	CreateError = errs.Class("create")
	InsertError = errs.Class("insert")
	CoerceError = errs.Class("coerce")
)

// Kind names the step a failure happened in
type Kind string

const (
	KindDrop   Kind = "drop"
	KindCreate Kind = "create"
	KindInsert Kind = "insert"
	KindCoerce Kind = "coerce"
)

// Failure is one statement or row that did not make it into the store
type Failure struct {
	Kind  Kind
	Table string
	Line  int // line in the consolidated file, 0 for DDL
	Err   error
}

func (f Failure) Error() string {
	if f.Line > 0 {
		return fmt.Sprintf("%s: line %d: %v", f.Table, f.Line, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.Table, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// TableResult is the outcome of rebuilding one table
type TableResult struct {
	Table        string
	RowsRead     int
	RowsInserted int
	Failures     []Failure
	Duration     time.Duration
}

// Failed reports whether any statement for the table failed
func (r *TableResult) Failed() bool {
	return len(r.Failures) > 0
}

// CountKind returns the number of failures of kind k
func (r *TableResult) CountKind(k Kind) int {
	n := 0
	for _, f := range r.Failures {
		if f.Kind == k {
			n++
		}
	}
	return n
}

// Report aggregates the table results of one load
type Report struct {
	Tables []*TableResult
}

// Failed reports whether any table had a failure
func (r *Report) Failed() bool {
	for _, t := range r.Tables {
		if t.Failed() {
			return true
		}
	}
	return false
}

// Err combines every failure into one error, or returns nil
func (r *Report) Err() error {
	var group errs.Group
	for _, t := range r.Tables {
		for _, f := range t.Failures {
			group.Add(f)
		}
	}
	return group.Err()
}

// Loader rebuilds lookup tables from a consolidated event file
type Loader struct {
	session  store.Session
	logger   *report.EventLogger
	progress bool
}

// Config holds loader configuration
type Config struct {
	Session store.Session
	Logger  *report.EventLogger
	// Progress draws a progress bar while inserting
	Progress bool
}

// New creates a new Loader
func New(cfg *Config) *Loader {
	return &Loader{
		session:  cfg.Session,
		logger:   cfg.Logger,
		progress: cfg.Progress,
	}
}

// RebuildAll rebuilds every lookup table in order
func (l *Loader) RebuildAll(ctx context.Context, csvPath string) (*Report, error) {
	rep := &Report{}
	for _, spec := range Tables() {
		result, err := l.Rebuild(ctx, spec, csvPath)
		if result != nil {
			rep.Tables = append(rep.Tables, result)
		}
		if err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// Rebuild drops, recreates and fills one table. Statement failures are
// recorded in the result and never stop the rebuild; only failing to read
// csvPath is returned as an error.
func (l *Loader) Rebuild(ctx context.Context, spec *TableSpec, csvPath string) (*TableResult, error) {
	start := time.Now()
	result := &TableResult{Table: spec.Name}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	dialect := l.session.Dialect()

	util.InfoLog("Rebuilding %s", spec.Name)

	if err := l.session.Exec(ctx, spec.DropStmt()); err != nil {
		l.fail(result, KindDrop, 0, DropError.Wrap(err))
	} else {
		l.logger.LogStatement(spec.Name, string(KindDrop))
	}

	create, err := spec.CreateStmt(dialect)
	if err == nil {
		err = l.session.Exec(ctx, create)
	}
	if err != nil {
		l.fail(result, KindCreate, 0, CreateError.Wrap(err))
	} else {
		l.logger.LogStatement(spec.Name, string(KindCreate))
	}

	rows, err := events.OpenRows(csvPath)
	if err != nil {
		return result, err
	}
	defer rows.Close()

	bar := l.newBar(spec.Name)
	insert := spec.InsertStmt(dialect)

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("failed to read %s: %w", csvPath, err)
		}
		result.RowsRead++
		bar.Add(1)

		args, err := spec.Bind(&row)
		if err != nil {
			l.fail(result, KindCoerce, rows.Line(), err)
			continue
		}

		if err := l.session.Exec(ctx, insert, args...); err != nil {
			l.fail(result, KindInsert, rows.Line(), InsertError.Wrap(err))
			continue
		}
		result.RowsInserted++
	}

	bar.Finish()
	result.Duration = time.Since(start)

	if result.Failed() {
		util.WarnLog("%s: %d/%d rows inserted, %d failures",
			spec.Name, result.RowsInserted, result.RowsRead, len(result.Failures))
	} else {
		util.SuccessLog("%s: %d rows inserted in %v",
			spec.Name, result.RowsInserted, result.Duration.Round(time.Millisecond))
	}
	l.logger.LogTable(spec.Name, result.RowsRead, result.RowsInserted, len(result.Failures), result.Duration)

	return result, nil
}

func (l *Loader) fail(result *TableResult, kind Kind, line int, err error) {
	f := Failure{Kind: kind, Table: result.Table, Line: line, Err: err}
	result.Failures = append(result.Failures, f)

	// Inserts usually fail in bulk once CREATE failed; keep those at debug level
	if kind == KindInsert || kind == KindCoerce {
		util.DebugLog("%v", f)
	} else {
		util.ErrorLog("%v", f)
	}
	l.logger.LogFailure(result.Table, string(kind), line, err)
}

func (l *Loader) newBar(table string) *progressbar.ProgressBar {
	if !l.progress {
		return progressbar.DefaultSilent(-1)
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Loading "+table),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(min(40, util.TerminalWidth()/3)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
