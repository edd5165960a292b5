package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/franz/playlog/internal/catalog"
	"github.com/franz/playlog/internal/util"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage the relational star schema",
	Long: `Manage the song play star schema in PostgreSQL: the songplays fact
table and the users, songs, artists and time dimensions.`,
}

var schemaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop and recreate every star schema table",
	Long: `Drop every star schema table, then create them again, in catalog order.
Stops at the first failing statement. All existing rows are lost.`,
	RunE: runSchemaReset,
}

var schemaPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the star schema statements",
	RunE:  runSchemaPrint,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaResetCmd)
	schemaCmd.AddCommand(schemaPrintCmd)

	schemaResetCmd.Flags().String("dsn", "", "postgres connection string (default from postgres_dsn)")
	schemaPrintCmd.Flags().Bool("inserts", false, "also print the insert and lookup statements")
}

func runSchemaReset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	bindFlags(cmd, map[string]string{"postgres_dsn": "dsn"})
	setupLogging()

	logger := openEventLogger()
	defer logger.Close()

	pool, err := catalog.Connect(ctx, GetConfigString("postgres_dsn", ""))
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := catalog.Reset(ctx, pool, logger); err != nil {
		return fmt.Errorf("schema reset failed: %w", err)
	}

	util.SuccessLog("Recreated %d tables", len(catalog.Tables()))
	return nil
}

func runSchemaPrint(cmd *cobra.Command, args []string) error {
	withInserts, _ := cmd.Flags().GetBool("inserts")
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "-- drop")
	for _, q := range catalog.DropTableQueries {
		fmt.Fprintf(out, "%s;\n", q)
	}

	fmt.Fprintln(out, "\n-- create")
	for _, q := range catalog.CreateTableQueries {
		fmt.Fprintf(out, "%s;\n", strings.TrimSpace(q))
	}

	if withInserts {
		fmt.Fprintln(out, "\n-- insert")
		for _, t := range catalog.Tables() {
			fmt.Fprintf(out, "%s;\n", strings.TrimSpace(t.Insert))
		}
		fmt.Fprintln(out, "\n-- find song")
		fmt.Fprintf(out, "%s;\n", strings.TrimSpace(catalog.SongSelect))
	}
	return nil
}
