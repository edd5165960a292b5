package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/franz/playlog/internal/util"
)

// Record is one result row keyed by column name
type Record map[string]any

// Session is an open handle on the wide store. It is opened once at the
// start of a run, used sequentially, and closed by the caller.
type Session interface {
	// Exec runs a statement that returns no rows
	Exec(ctx context.Context, stmt string, args ...any) error
	// Query runs a statement and collects every result row
	Query(ctx context.Context, stmt string, args ...any) ([]Record, error)
	// Dialect reports which statement flavor the session expects
	Dialect() Dialect
	// Describe returns a short human-readable description of the target
	Describe() string
	Close() error
}

// Backend names accepted by Open
const (
	BackendCassandra = "cassandra"
	BackendSQLite    = "sqlite"
)

// Config selects and configures a backend
type Config struct {
	Backend    string
	Hosts      []string
	Port       int
	Keyspace   string
	Username   string
	Password   string
	Timeout    time.Duration
	SQLitePath string
}

// Open opens a session on the configured backend
func Open(ctx context.Context, cfg *Config) (Session, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendCassandra, "":
		return OpenCassandra(ctx, &CassandraConfig{
			Hosts:    cfg.Hosts,
			Port:     cfg.Port,
			Keyspace: cfg.Keyspace,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.Timeout,
		})
	case BackendSQLite:
		return OpenSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("backend %q: %w", cfg.Backend, util.ErrUnsupported)
	}
}

// CountRows returns the number of rows in table
func CountRows(ctx context.Context, s Session, table *Table) (int64, error) {
	records, err := s.Query(ctx, table.CountStmt())
	if err != nil {
		return 0, err
	}
	if len(records) != 1 {
		return 0, fmt.Errorf("count on %s returned %d rows", table.Name, len(records))
	}
	return AsInt64(records[0]["row_count"])
}

// AsInt64 converts a driver integer value to int64
func AsInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not an integer", v, v)
	}
}

// AsFloat64 converts a driver floating point value to float64
func AsFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("value %v (%T) is not a number", v, v)
	}
}
