package main

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/playlog/internal/store"
	"github.com/franz/playlog/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consolidate event files, rebuild the lookup tables and verify them",
	Long: `Run the whole pipeline:

1. Consolidate: merge every *.csv under the events directory into one file,
   keeping the 11 columns the tables need and dropping rows without an artist
2. Load: drop, recreate and fill session_library, user_library and
   name_library from the consolidated file
3. Verify: read known keys back from each table

Failed statements are recorded and the run continues. With --strict any
recorded failure makes the command exit non-zero. A run summary is written
to <artifacts>/summary.json; render it with 'playlog report'.`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("events", "event_data", "directory holding the event CSV files")
	runCmd.Flags().StringP("output", "o", "event_datafile_new.csv", "consolidated CSV file")
	runCmd.Flags().Bool("strict", false, "exit non-zero when any statement failed")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()
	bindFlags(cmd, pipelineFlags)
	setupLogging()

	eventsDir := GetConfigString("events_dir", "event_data")
	output := GetConfigString("output", "event_datafile_new.csv")

	logger := openEventLogger()
	defer logger.Close()

	summary := newSummary(logger)
	defer saveSummary(summary, start)

	if err := consolidateStep(eventsDir, output, logger, summary); err != nil {
		return err
	}

	cfg := storeConfig()
	summary.Backend = cfg.Backend
	summary.Store = storeLocation(cfg)

	util.InfoLog("Opening %s store", cfg.Backend)
	session, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer session.Close()

	if _, err := loadStep(ctx, session, output, logger, summary); err != nil {
		return err
	}

	verifyStep(ctx, session, logger, summary)

	util.InfoLog("")
	util.SuccessLog("Done in %v", time.Since(start).Round(time.Millisecond))
	return failIfStrict(viper.GetBool("strict"), summary)
}
