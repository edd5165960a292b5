package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/playlog/internal/catalog"
	"github.com/franz/playlog/internal/events"
	"github.com/franz/playlog/internal/store"
	"github.com/franz/playlog/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure playlog can operate correctly.

This command checks:
- Events directory exists and holds CSV files
- Output location is writable
- SQLite version (built-in)
- Wide store connectivity for the configured backend
- PostgreSQL connectivity for the star schema (optional)

Use this command to troubleshoot issues before running the pipeline.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().String("events", "event_data", "directory holding the event CSV files")
	doctorCmd.Flags().StringP("output", "o", "event_datafile_new.csv", "consolidated CSV file")
	doctorCmd.Flags().Bool("postgres", false, "also check the postgres connection")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, pipelineFlags)
	setupLogging()

	util.InfoLog("=== Playlog Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{
		checkEventsDirectory(GetConfigString("events_dir", "event_data")),
		checkOutputPath(GetConfigString("output", "event_datafile_new.csv")),
		checkSQLite(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := storeConfig()
	cfg.Timeout = 5 * time.Second
	results = append(results, checkStore(ctx, cfg))

	if withPostgres, _ := cmd.Flags().GetBool("postgres"); withPostgres {
		results = append(results, checkPostgres(ctx, viper.GetString("postgres_dsn")))
	}

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Please resolve errors before running playlog.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed! Ready to run the pipeline.")
	}

	return nil
}

// checkEventsDirectory verifies the events directory holds CSV files
func checkEventsDirectory(dir string) checkResult {
	paths, err := events.Discover(dir)
	if err != nil {
		return checkResult{
			name:    "Events directory",
			error:   true,
			message: fmt.Sprintf("cannot read %s: %v", dir, err),
		}
	}

	if len(paths) == 0 {
		return checkResult{
			name:    "Events directory",
			warning: true,
			message: fmt.Sprintf("%s has no CSV files (output will be header only)", dir),
		}
	}

	var size int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			size += info.Size()
		}
	}

	return checkResult{
		name:    "Events directory",
		message: fmt.Sprintf("%s (%d files, %s)", dir, len(paths), humanize.Bytes(uint64(size))),
	}
}

// checkOutputPath verifies the consolidated file can be written
func checkOutputPath(path string) checkResult {
	dir := filepath.Dir(path)

	info, err := os.Stat(dir)
	if err != nil {
		return checkResult{
			name:    "Output",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dir, err),
		}
	}
	if !info.IsDir() {
		return checkResult{
			name:    "Output",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", dir),
		}
	}

	probe, err := os.CreateTemp(dir, ".playlog-write-test-*")
	if err != nil {
		return checkResult{
			name:    "Output",
			error:   true,
			message: fmt.Sprintf("%s is not writable: %v", dir, err),
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	if _, err := os.Stat(path); err == nil {
		return checkResult{
			name:    "Output",
			message: fmt.Sprintf("%s (exists, will be replaced)", path),
		}
	}

	return checkResult{
		name:    "Output",
		message: path,
	}
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkStore opens the configured wide store and, for SQLite, checks its
// integrity
func checkStore(ctx context.Context, cfg *store.Config) checkResult {
	name := fmt.Sprintf("Store (%s)", cfg.Backend)

	session, err := store.Open(ctx, cfg)
	if err != nil {
		return checkResult{
			name:    name,
			error:   true,
			message: fmt.Sprintf("cannot open: %v", err),
		}
	}
	defer session.Close()

	if db, ok := session.(*store.SQLite); ok {
		if err := db.CheckIntegrity(ctx); err != nil {
			return checkResult{
				name:    name,
				error:   true,
				message: err.Error(),
			}
		}
	}

	return checkResult{
		name:    name,
		message: session.Describe(),
	}
}

// checkPostgres verifies the star schema database answers
func checkPostgres(ctx context.Context, dsn string) checkResult {
	if dsn == "" {
		return checkResult{
			name:    "PostgreSQL",
			warning: true,
			message: "no dsn configured (set postgres_dsn)",
		}
	}

	pool, err := catalog.Connect(ctx, dsn)
	if err != nil {
		return checkResult{
			name:    "PostgreSQL",
			warning: true,
			message: err.Error(),
		}
	}
	defer pool.Close()

	cfg := pool.Config().ConnConfig
	return checkResult{
		name:    "PostgreSQL",
		message: fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database),
	}
}
