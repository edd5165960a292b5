package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/franz/playlog/internal/report"
	"github.com/franz/playlog/internal/util"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Execer runs statements that return no rows. *pgxpool.Pool, *pgx.Conn and
// pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Querier runs statements and single-row lookups
type Querier interface {
	Execer
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a connection pool and waits for the server to answer
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", util.ErrInvalidConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	err = util.Retry(ctx, util.ConnectRetryConfig(), func() error {
		return pool.Ping(ctx)
	}, "postgres ping")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", cfg.ConnConfig.Host, cfg.ConnConfig.Port, err)
	}

	return pool, nil
}

// Reset drops and recreates every catalog table, stopping at the first
// failing statement.
func Reset(ctx context.Context, db Execer, logger *report.EventLogger) error {
	for _, t := range Tables() {
		if _, err := db.Exec(ctx, t.Drop); err != nil {
			logger.LogSchema(t.Name, "drop", err)
			return fmt.Errorf("drop %s: %w", t.Name, err)
		}
		logger.LogSchema(t.Name, "drop", nil)
	}

	for _, t := range Tables() {
		if _, err := db.Exec(ctx, t.Create); err != nil {
			logger.LogSchema(t.Name, "create", err)
			return fmt.Errorf("create %s: %w", t.Name, err)
		}
		logger.LogSchema(t.Name, "create", nil)
		util.DebugLog("Created %s", t.Name)
	}

	return nil
}

// User is one row of the users dimension
type User struct {
	UserID    string
	FirstName string
	LastName  string
	Gender    string
	Level     string
}

// Song is one row of the songs dimension
type Song struct {
	SongID   string
	Title    string
	ArtistID string
	Year     int
	Duration float64
}

// Artist is one row of the artists dimension. Coordinates may be unknown.
type Artist struct {
	ArtistID  string
	Name      string
	Location  string
	Latitude  *float64
	Longitude *float64
}

// TimeRow is one row of the time dimension
type TimeRow struct {
	StartTime time.Time
	Hour      int
	Day       int
	Week      int
	Month     int
	Year      int
	Weekday   int // Monday is 0
}

// NewTimeRow splits a play timestamp into its calendar units
func NewTimeRow(ts time.Time) TimeRow {
	_, week := ts.ISOWeek()
	return TimeRow{
		StartTime: ts,
		Hour:      ts.Hour(),
		Day:       ts.Day(),
		Week:      week,
		Month:     int(ts.Month()),
		Year:      ts.Year(),
		Weekday:   (int(ts.Weekday()) + 6) % 7,
	}
}

// FromMillis converts an event log timestamp in epoch milliseconds
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Songplay is one row of the songplays fact table. SongID and ArtistID are
// empty when the play could not be matched to a known song.
type Songplay struct {
	StartTime time.Time
	UserID    string
	Level     string
	SongID    string
	ArtistID  string
	SessionID int
	Location  string
	UserAgent string
}

// InsertUser adds a user. A known user keeps the level already stored.
func InsertUser(ctx context.Context, db Execer, u *User) error {
	_, err := db.Exec(ctx, UserTableInsert, u.UserID, u.FirstName, u.LastName, u.Gender, u.Level)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.UserID, err)
	}
	return nil
}

// InsertSong adds a song unless it already exists
func InsertSong(ctx context.Context, db Execer, s *Song) error {
	_, err := db.Exec(ctx, SongTableInsert, s.SongID, s.Title, s.ArtistID, s.Year, s.Duration)
	if err != nil {
		return fmt.Errorf("insert song %s: %w", s.SongID, err)
	}
	return nil
}

// InsertArtist adds an artist unless it already exists
func InsertArtist(ctx context.Context, db Execer, a *Artist) error {
	_, err := db.Exec(ctx, ArtistTableInsert, a.ArtistID, a.Name, a.Location, a.Latitude, a.Longitude)
	if err != nil {
		return fmt.Errorf("insert artist %s: %w", a.ArtistID, err)
	}
	return nil
}

// InsertTime adds a time row unless the time of day already exists
func InsertTime(ctx context.Context, db Execer, t *TimeRow) error {
	_, err := db.Exec(ctx, TimeTableInsert, TimeOfDay(t.StartTime), t.Hour, t.Day, t.Week, t.Month, t.Year, t.Weekday)
	if err != nil {
		return fmt.Errorf("insert time %s: %w", t.StartTime.Format(time.RFC3339), err)
	}
	return nil
}

// InsertSongplay appends a play to the fact table
func InsertSongplay(ctx context.Context, db Execer, p *Songplay) error {
	_, err := db.Exec(ctx, SongplayTableInsert,
		TimeOfDay(p.StartTime), p.UserID, p.Level, nullable(p.SongID), nullable(p.ArtistID),
		p.SessionID, p.Location, p.UserAgent)
	if err != nil {
		return fmt.Errorf("insert songplay: %w", err)
	}
	return nil
}

// FindSong looks up the song and artist ids for a play. It returns
// util.ErrNotFound when no song matches.
func FindSong(ctx context.Context, db Querier, title, artist string, duration float64) (songID, artistID string, err error) {
	err = db.QueryRow(ctx, SongSelect, title, artist, duration).Scan(&songID, &artistID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", fmt.Errorf("song %q by %q: %w", title, artist, util.ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("find song: %w", err)
	}
	return songID, artistID, nil
}

// TimeOfDay converts ts to the value bound to a start_time column, which
// holds the time of day only
func TimeOfDay(ts time.Time) pgtype.Time {
	midnight := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	return pgtype.Time{Microseconds: ts.Sub(midnight).Microseconds(), Valid: true}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
