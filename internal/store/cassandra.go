package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	gocql "github.com/apache/cassandra-gocql-driver/v2"

	"github.com/franz/playlog/internal/util"
)

// CassandraConfig holds connection settings for a Cassandra cluster
type CassandraConfig struct {
	Hosts    []string
	Port     int
	Keyspace string
	Username string
	Password string
	Timeout  time.Duration
	Retry    *util.RetryConfig
}

// Cassandra is a Session bound to one keyspace
type Cassandra struct {
	session  *gocql.Session
	keyspace string
	hosts    []string
}

var keyspaceName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,47}$`)

// OpenCassandra connects to the cluster, creates the keyspace if it is absent
// (SimpleStrategy, replication factor 1: a single node is assumed) and returns
// a session bound to it.
func OpenCassandra(ctx context.Context, cfg *CassandraConfig) (*Cassandra, error) {
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = []string{"127.0.0.1"}
	}
	if !keyspaceName.MatchString(cfg.Keyspace) {
		return nil, fmt.Errorf("keyspace %q: %w", cfg.Keyspace, util.ErrInvalidConfig)
	}
	if cfg.Retry == nil {
		cfg.Retry = util.ConnectRetryConfig()
	}

	cluster := newCluster(cfg)

	bootstrap, err := connect(ctx, cluster, cfg.Retry)
	if err != nil {
		return nil, err
	}

	if err := bootstrap.Query(CreateKeyspaceStmt(cfg.Keyspace)).ExecContext(ctx); err != nil {
		// The keyspace may already exist with other options; binding below decides.
		util.WarnLog("Failed to create keyspace %s: %v", cfg.Keyspace, err)
	}
	bootstrap.Close()

	cluster.Keyspace = cfg.Keyspace
	session, err := connect(ctx, cluster, cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("failed to use keyspace %s: %w", cfg.Keyspace, err)
	}

	return &Cassandra{
		session:  session,
		keyspace: cfg.Keyspace,
		hosts:    cfg.Hosts,
	}, nil
}

// CreateKeyspaceStmt returns the keyspace DDL for a single-node cluster
func CreateKeyspaceStmt(keyspace string) string {
	return fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s
		WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`, keyspace)
}

func newCluster(cfg *CassandraConfig) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(cfg.Hosts...)
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
		cluster.ConnectTimeout = cfg.Timeout
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	cluster.Consistency = gocql.One
	return cluster
}

func connect(ctx context.Context, cluster *gocql.ClusterConfig, retry *util.RetryConfig) (*gocql.Session, error) {
	name := fmt.Sprintf("cassandra connect (%s)", strings.Join(cluster.Hosts, ","))
	session, err := util.RetryWithBackoff(ctx, retry, func() (*gocql.Session, error) {
		return cluster.CreateSession()
	}, name)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cassandra: %w", err)
	}
	return session, nil
}

// Exec runs a statement that returns no rows
func (c *Cassandra) Exec(ctx context.Context, stmt string, args ...any) error {
	return c.session.Query(stmt, args...).ExecContext(ctx)
}

// Query runs stmt and collects every row
func (c *Cassandra) Query(ctx context.Context, stmt string, args ...any) ([]Record, error) {
	iter := c.session.Query(stmt, args...).IterContext(ctx)

	var records []Record
	for {
		row := make(map[string]interface{})
		if !iter.MapScan(row) {
			break
		}
		records = append(records, Record(row))
	}

	if err := iter.Close(); err != nil {
		return nil, err
	}
	return records, nil
}

// Dialect returns DialectCQL
func (c *Cassandra) Dialect() Dialect {
	return DialectCQL
}

// Describe returns the hosts and keyspace
func (c *Cassandra) Describe() string {
	return fmt.Sprintf("cassandra %s/%s", strings.Join(c.hosts, ","), c.keyspace)
}

// Close shuts the session down
func (c *Cassandra) Close() error {
	c.session.Close()
	return nil
}
