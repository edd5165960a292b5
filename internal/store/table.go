package store

import (
	"fmt"
	"strings"
)

// Dialect identifies the statement flavor a Session speaks
type Dialect string

const (
	DialectCQL    Dialect = "cql"
	DialectSQLite Dialect = "sqlite"
)

// ColumnType is a logical column type mapped to a concrete type per dialect
type ColumnType int

const (
	Int ColumnType = iota
	Double
	Text
)

var columnTypeNames = map[Dialect]map[ColumnType]string{
	DialectCQL: {
		Int:    "int",
		Double: "double",
		Text:   "text",
	},
	DialectSQLite: {
		Int:    "INTEGER",
		Double: "REAL",
		Text:   "TEXT",
	},
}

// Column is one named, typed column of a table
type Column struct {
	Name string
	Type ColumnType
}

// Table describes a denormalized lookup table. PartitionKeys decide which
// node owns a row in Cassandra; ClusteringKeys order rows inside a partition.
// Together they form the primary key, and writes to an existing key replace the row.
type Table struct {
	Name           string
	Columns        []Column
	PartitionKeys  []string
	ClusteringKeys []string
}

// Validate checks that every key column is declared
func (t *Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table has no name")
	}
	if len(t.PartitionKeys) == 0 {
		return fmt.Errorf("table %s has no partition key", t.Name)
	}

	declared := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		declared[c.Name] = true
	}
	for _, k := range t.keys() {
		if !declared[k] {
			return fmt.Errorf("table %s: key column %s is not declared", t.Name, k)
		}
	}
	return nil
}

func (t *Table) keys() []string {
	keys := make([]string, 0, len(t.PartitionKeys)+len(t.ClusteringKeys))
	keys = append(keys, t.PartitionKeys...)
	return append(keys, t.ClusteringKeys...)
}

// ColumnNames returns the column names in declaration order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// DropStmt returns the statement removing the table if it exists
func (t *Table) DropStmt() string {
	return "DROP TABLE IF EXISTS " + t.Name
}

// CreateStmt renders the CREATE TABLE statement for d
func (t *Table) CreateStmt(d Dialect) (string, error) {
	types, ok := columnTypeNames[d]
	if !ok {
		return "", fmt.Errorf("no column types for dialect %q", d)
	}

	parts := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		typ, ok := types[c.Type]
		if !ok {
			return "", fmt.Errorf("table %s: column %s has unknown type %d", t.Name, c.Name, c.Type)
		}
		parts = append(parts, c.Name+" "+typ)
	}
	parts = append(parts, "PRIMARY KEY ("+t.primaryKey(d)+")")

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(parts, ", ")), nil
}

// primaryKey renders the key declaration. CQL wraps a composite partition key
// in its own parentheses; SQLite has no partitions and takes the flat list.
func (t *Table) primaryKey(d Dialect) string {
	if d != DialectCQL || len(t.PartitionKeys) == 1 {
		return strings.Join(t.keys(), ", ")
	}

	key := "(" + strings.Join(t.PartitionKeys, ", ") + ")"
	if len(t.ClusteringKeys) > 0 {
		key += ", " + strings.Join(t.ClusteringKeys, ", ")
	}
	return key
}

// InsertStmt renders a parameterized insert of every column. Both dialects
// overwrite an existing row with the same key.
func (t *Table) InsertStmt(d Dialect) string {
	verb := "INSERT INTO"
	if d == DialectSQLite {
		verb = "INSERT OR REPLACE INTO"
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	return fmt.Sprintf("%s %s (%s) VALUES (%s)",
		verb, t.Name, strings.Join(t.ColumnNames(), ", "), placeholders)
}

// CountStmt returns a statement counting all rows of the table
func (t *Table) CountStmt() string {
	return "SELECT COUNT(*) AS row_count FROM " + t.Name
}
