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

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Rebuild the lookup tables from an existing consolidated file",
	Long: `Drop, recreate and fill session_library, user_library and name_library
from a consolidated CSV written by 'playlog consolidate'.

Every row is inserted into every table; rows sharing a primary key
overwrite each other (last write wins). Statement failures are recorded and
loading continues with the next row or table.`,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().StringP("input", "i", "event_datafile_new.csv", "consolidated CSV file")
	loadCmd.Flags().Bool("strict", false, "exit non-zero when any statement failed")
	loadCmd.Flags().Bool("verify", true, "run the read-back checks after loading")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()
	bindFlags(cmd, map[string]string{"output": "input", "strict": "strict"})
	setupLogging()

	input := GetConfigString("output", "event_datafile_new.csv")

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

	if _, err := loadStep(ctx, session, input, logger, summary); err != nil {
		return err
	}

	if doVerify, _ := cmd.Flags().GetBool("verify"); doVerify {
		verifyStep(ctx, session, logger, summary)
	}

	util.SuccessLog("Done in %v", time.Since(start).Round(time.Millisecond))
	return failIfStrict(viper.GetBool("strict"), summary)
}
