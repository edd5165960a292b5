package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/playlog/internal/report"
	"github.com/franz/playlog/internal/util"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the last run summary as Markdown",
	Long: `Render the summary of the last playlog run in Markdown format.

The report includes:
- Consolidation counts (files, rows read, skipped and written)
- Per-table load results with failures by kind
- Read-back check results
- Top errors

The report is saved to <artifacts>/reports/<timestamp>/summary.md`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "Output directory for report (default: <artifacts>/reports/<timestamp>)")
	reportCmd.Flags().String("summary", "", "run summary to render (default: <artifacts>/summary.json)")
}

func runReport(cmd *cobra.Command, args []string) error {
	setupLogging()

	in, _ := cmd.Flags().GetString("summary")
	if in == "" {
		in = summaryPath()
	}

	summary, err := report.LoadSummary(in)
	if err != nil {
		return fmt.Errorf("no run summary found (run 'playlog run' first): %w", err)
	}

	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = filepath.Join(artifactsDir(), "reports", time.Now().Format("20060102-150405"))
	}
	outputPath := filepath.Join(outDir, "summary.md")

	if err := report.WriteMarkdownReport(summary, outputPath); err != nil {
		return err
	}

	util.SuccessLog("Report written to %s", outputPath)
	if summary.Failed() {
		util.WarnLog("The run recorded failures; see the Top Errors section")
	}
	return nil
}
