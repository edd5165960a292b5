// Package verify reads known keys back from the lookup tables after a load.
package verify

import (
	"context"
	"fmt"

	"github.com/franz/playlog/internal/report"
	"github.com/franz/playlog/internal/store"
	"github.com/franz/playlog/internal/util"
)

// Check is one named read-back query
type Check struct {
	Name    string
	Table   string
	Query   string
	Args    []any
	Columns []string // columns selected, in order
}

// Result is the outcome of running one check
type Result struct {
	Check *Check
	Rows  []store.Record
	Err   error
}

// OK reports whether the query succeeded and returned at least one row
func (r *Result) OK() bool {
	return r.Err == nil && len(r.Rows) > 0
}

// SongInSession looks up the song played at item 4 of session 338
var SongInSession = Check{
	Name:    "song in session",
	Table:   "session_library",
	Query:   "SELECT artist, song_title, song_length FROM session_library WHERE session_id = ? AND item_in_session = ?",
	Args:    []any{338, 4},
	Columns: []string{"artist", "song_title", "song_length"},
}

// SongsOfUserSession lists what user 10 played in session 182
var SongsOfUserSession = Check{
	Name:    "songs of user session",
	Table:   "user_library",
	Query:   "SELECT artist, song_title, first_name, last_name FROM user_library WHERE user_id = ? AND session_id = ?",
	Args:    []any{10, 182},
	Columns: []string{"artist", "song_title", "first_name", "last_name"},
}

// ListenersOfSong lists every user who listened to one song
var ListenersOfSong = Check{
	Name:    "listeners of song",
	Table:   "name_library",
	Query:   "SELECT first_name, last_name FROM name_library WHERE song_title = ?",
	Args:    []any{"All Hands Against His Own"},
	Columns: []string{"first_name", "last_name"},
}

// Checks returns the read-back checks in run order
func Checks() []*Check {
	return []*Check{&SongInSession, &SongsOfUserSession, &ListenersOfSong}
}

// Run executes one check. Query errors are returned in the result.
func (c *Check) Run(ctx context.Context, s store.Session) *Result {
	rows, err := s.Query(ctx, c.Query, c.Args...)
	if err != nil {
		err = fmt.Errorf("%s: %w", c.Name, err)
	}
	return &Result{Check: c, Rows: rows, Err: err}
}

// Run executes every check in order. A failing check never stops the others.
func Run(ctx context.Context, s store.Session, logger *report.EventLogger) []*Result {
	var results []*Result
	for _, c := range Checks() {
		r := c.Run(ctx, s)
		if r.Err != nil {
			util.ErrorLog("Check %q failed: %v", c.Name, r.Err)
		} else {
			util.DebugLog("Check %q returned %d rows", c.Name, len(r.Rows))
		}
		logger.LogVerify(c.Name, c.Table, len(r.Rows), r.Err)
		results = append(results, r)
	}
	return results
}

// Format renders one record in the check's column order
func (c *Check) Format(rec store.Record) string {
	out := ""
	for i, col := range c.Columns {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%v", col, rec[col])
	}
	return out
}
