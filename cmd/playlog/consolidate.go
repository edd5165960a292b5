package main

import (
	"time"

	"github.com/spf13/cobra"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge the event CSV files into one consolidated file",
	Long: `Merge every *.csv file found under the events directory (recursively,
in path order) into one consolidated CSV.

Each source file must have a header row naming at least the columns artist,
firstName, gender, itemInSession, lastName, length, level, location,
sessionId, song and userId; other columns are ignored. Rows with an empty
artist are dropped. The output has the fixed header

  artist, first_name, gender, item_in_session, last_name, length, level,
  location, session_id, song, user_id

with every field quoted. An existing output file is replaced.`,
	RunE: runConsolidate,
}

func init() {
	rootCmd.AddCommand(consolidateCmd)

	consolidateCmd.Flags().String("events", "event_data", "directory holding the event CSV files")
	consolidateCmd.Flags().StringP("output", "o", "event_datafile_new.csv", "consolidated CSV file")
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	start := time.Now()
	bindFlags(cmd, pipelineFlags)
	setupLogging()

	logger := openEventLogger()
	defer logger.Close()

	summary := newSummary(logger)
	defer saveSummary(summary, start)

	return consolidateStep(
		GetConfigString("events_dir", "event_data"),
		GetConfigString("output", "event_datafile_new.csv"),
		logger, summary)
}
