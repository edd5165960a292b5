package loader

import (
	"strconv"
	"strings"

	"github.com/franz/playlog/internal/events"
	"github.com/franz/playlog/internal/store"
)

// TableSpec pairs a table definition with the projection of a consolidated
// row onto its columns. Bind returns values in Table.Columns order.
type TableSpec struct {
	store.Table
	Bind func(row *events.Row) ([]any, error)
}

// SessionLibrary answers "which song played at item N of session S".
// Key (session_id, item_in_session); a repeated key keeps the last row written.
var SessionLibrary = TableSpec{
	Table: store.Table{
		Name: "session_library",
		Columns: []store.Column{
			{Name: "session_id", Type: store.Int},
			{Name: "item_in_session", Type: store.Int},
			{Name: "artist", Type: store.Text},
			{Name: "song_title", Type: store.Text},
			{Name: "song_length", Type: store.Double},
		},
		PartitionKeys:  []string{"session_id"},
		ClusteringKeys: []string{"item_in_session"},
	},
	Bind: func(row *events.Row) ([]any, error) {
		sessionID, err := parseInt("session_id", row.SessionID)
		if err != nil {
			return nil, err
		}
		item, err := parseInt("item_in_session", row.ItemInSession)
		if err != nil {
			return nil, err
		}
		length, err := parseFloat("length", row.Length)
		if err != nil {
			return nil, err
		}
		return []any{sessionID, item, row.Artist, row.Song, length}, nil
	},
}

// UserLibrary lists the songs a user played in one session, in play order.
var UserLibrary = TableSpec{
	Table: store.Table{
		Name: "user_library",
		Columns: []store.Column{
			{Name: "user_id", Type: store.Int},
			{Name: "session_id", Type: store.Int},
			{Name: "item_in_session", Type: store.Int},
			{Name: "artist", Type: store.Text},
			{Name: "song_title", Type: store.Text},
			{Name: "first_name", Type: store.Text},
			{Name: "last_name", Type: store.Text},
		},
		PartitionKeys:  []string{"user_id", "session_id"},
		ClusteringKeys: []string{"item_in_session"},
	},
	Bind: func(row *events.Row) ([]any, error) {
		userID, err := parseInt("user_id", row.UserID)
		if err != nil {
			return nil, err
		}
		sessionID, err := parseInt("session_id", row.SessionID)
		if err != nil {
			return nil, err
		}
		item, err := parseInt("item_in_session", row.ItemInSession)
		if err != nil {
			return nil, err
		}
		return []any{userID, sessionID, item, row.Artist, row.Song, row.FirstName, row.LastName}, nil
	},
}

// NameLibrary lists every user who listened to a song. user_id stays text here.
var NameLibrary = TableSpec{
	Table: store.Table{
		Name: "name_library",
		Columns: []store.Column{
			{Name: "song_title", Type: store.Text},
			{Name: "user_id", Type: store.Text},
			{Name: "first_name", Type: store.Text},
			{Name: "last_name", Type: store.Text},
		},
		PartitionKeys:  []string{"song_title"},
		ClusteringKeys: []string{"user_id"},
	},
	Bind: func(row *events.Row) ([]any, error) {
		return []any{row.Song, row.UserID, row.FirstName, row.LastName}, nil
	},
}

// Tables returns the lookup tables in load order
func Tables() []*TableSpec {
	return []*TableSpec{&SessionLibrary, &UserLibrary, &NameLibrary}
}

// TableByName looks a table up by name
func TableByName(name string) (*TableSpec, bool) {
	for _, t := range Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

func parseInt(field, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, CoerceError.New("%s: %q is not an integer", field, value)
	}
	return n, nil
}

func parseFloat(field, value string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, CoerceError.New("%s: %q is not a number", field, value)
	}
	return f, nil
}
