package main

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/playlog/internal/report"
	"github.com/franz/playlog/internal/store"
	"github.com/franz/playlog/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// pipelineFlags maps config keys to the local flags several commands share
var pipelineFlags = map[string]string{
	"events_dir": "events",
	"output":     "output",
	"strict":     "strict",
}

// bindFlags binds the local flags of the running command. Binding happens
// at run time so commands sharing a key do not override each other.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		if f := cmd.Flags().Lookup(name); f != nil {
			viper.BindPFlag(key, f)
		}
	}
}

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (PLAYLOG_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// GetConfigDuration retrieves a duration config value such as "10s"
func GetConfigDuration(key string, defaultValue time.Duration) time.Duration {
	val := viper.GetDuration(key)
	if val <= 0 {
		return defaultValue
	}
	return val
}

// setupLogging applies --verbose and --quiet to the console logger
func setupLogging() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

// storeConfig builds the wide store configuration from flags, env and file
func storeConfig() *store.Config {
	hosts := splitList(viper.GetStringSlice("hosts"))
	if len(hosts) == 0 {
		hosts = []string{"127.0.0.1"}
	}
	return &store.Config{
		Backend:    GetConfigString("backend", store.BackendCassandra),
		Hosts:      hosts,
		Port:       GetConfigInt("port", 9042),
		Keyspace:   GetConfigString("keyspace", "udacity"),
		Username:   viper.GetString("username"),
		Password:   viper.GetString("password"),
		Timeout:    GetConfigDuration("timeout", 10*time.Second),
		SQLitePath: GetConfigString("sqlite_path", "playlog.db"),
	}
}

// splitList flattens comma-separated entries. Viper splits env values on
// whitespace only, so PLAYLOG_HOSTS=a,b arrives as one entry.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// storeLocation describes where the configured backend lives
func storeLocation(cfg *store.Config) string {
	if cfg.Backend == store.BackendSQLite {
		return cfg.SQLitePath
	}
	return cfg.Keyspace
}

func artifactsDir() string {
	return GetConfigString("artifacts", "artifacts")
}

func summaryPath() string {
	return filepath.Join(artifactsDir(), report.SummaryFile)
}

// openEventLogger creates the JSONL event log, falling back to a no-op
// logger when the artifacts directory is not writable
func openEventLogger() *report.EventLogger {
	level := report.LevelInfo
	if viper.GetBool("quiet") {
		level = report.LevelWarning
	} else if viper.GetBool("verbose") {
		level = report.LevelDebug
	}

	logger, err := report.NewEventLogger(artifactsDir(), level)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}

	util.DebugLog("Event log: %s", logger.Path())
	return logger
}
