package events

import (
	"fmt"
	"strings"

	"github.com/franz/playlog/internal/util"
	"github.com/jszwec/csvutil"
)

// Event is one listening event from a source log file. Fields are decoded by
// header name; columns the pipeline does not use (auth, page, ts, ...) are ignored.
type Event struct {
	Artist        string `csv:"artist"`
	FirstName     string `csv:"firstName"`
	Gender        string `csv:"gender"`
	ItemInSession string `csv:"itemInSession"`
	LastName      string `csv:"lastName"`
	Length        string `csv:"length"`
	Level         string `csv:"level"`
	Location      string `csv:"location"`
	SessionID     string `csv:"sessionId"`
	Song          string `csv:"song"`
	UserID        string `csv:"userId"`
}

// Valid reports whether the event describes a song play. Events without an
// artist are page views, logins and the like.
func (e *Event) Valid() bool {
	return e.Artist != ""
}

// Row returns the consolidated projection of the event. Values are copied verbatim.
func (e *Event) Row() Row {
	return Row{
		Artist:        e.Artist,
		FirstName:     e.FirstName,
		Gender:        e.Gender,
		ItemInSession: e.ItemInSession,
		LastName:      e.LastName,
		Length:        e.Length,
		Level:         e.Level,
		Location:      e.Location,
		SessionID:     e.SessionID,
		Song:          e.Song,
		UserID:        e.UserID,
	}
}

// Row is one line of the consolidated event file. The field order is the
// column order of the file, and the loader reads it back by these names.
type Row struct {
	Artist        string `csv:"artist"`
	FirstName     string `csv:"first_name"`
	Gender        string `csv:"gender"`
	ItemInSession string `csv:"item_in_session"`
	LastName      string `csv:"last_name"`
	Length        string `csv:"length"`
	Level         string `csv:"level"`
	Location      string `csv:"location"`
	SessionID     string `csv:"session_id"`
	Song          string `csv:"song"`
	UserID        string `csv:"user_id"`
}

// Values returns the row's fields in header order.
func (r *Row) Values() []string {
	return []string{
		r.Artist,
		r.FirstName,
		r.Gender,
		r.ItemInSession,
		r.LastName,
		r.Length,
		r.Level,
		r.Location,
		r.SessionID,
		r.Song,
		r.UserID,
	}
}

var (
	eventHeader = mustHeader(Event{})
	rowHeader   = mustHeader(Row{})
)

// Header returns the consolidated file's header columns.
func Header() []string {
	return append([]string(nil), rowHeader...)
}

func mustHeader(v interface{}) []string {
	h, err := csvutil.Header(v, "csv")
	if err != nil {
		panic(err)
	}
	return h
}

// checkHeader verifies that every required column is present in header.
func checkHeader(header, required []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[strings.TrimSpace(h)] = true
	}

	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing columns %s", util.ErrInvalidSchema, strings.Join(missing, ", "))
	}
	return nil
}
