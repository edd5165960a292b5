package main

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/playlog/internal/store"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Read known keys back from the lookup tables",
	Long: `Run the read-back checks against the configured store:

- session_library: the song at session 338, item 4
- user_library: the songs user 10 played in session 182
- name_library: everyone who listened to 'All Hands Against His Own'

Exits non-zero when a check fails to run or returns no rows.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()
	setupLogging()

	logger := openEventLogger()
	defer logger.Close()

	summary := newSummary(logger)
	defer saveSummary(summary, start)

	cfg := storeConfig()
	summary.Backend = cfg.Backend
	summary.Store = storeLocation(cfg)

	session, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer session.Close()

	failed := 0
	for _, r := range verifyStep(ctx, session, logger, summary) {
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(summary.Checks))
	}
	return nil
}
