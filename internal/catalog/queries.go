// Package catalog holds the relational star schema for song plays: DDL and
// DML statement text for the songplays fact table and the users, songs,
// artists and time dimensions, plus a small driver that applies them.
package catalog

// DROP TABLES

const (
	SongplayTableDrop = "DROP TABLE IF EXISTS songplays"
	UserTableDrop     = "DROP TABLE IF EXISTS users"
	SongTableDrop     = "DROP TABLE IF EXISTS songs"
	ArtistTableDrop   = "DROP TABLE IF EXISTS artists"
	TimeTableDrop     = "DROP TABLE IF EXISTS time"
)

// CREATE TABLES

const SongplayTableCreate = `
CREATE TABLE IF NOT EXISTS songplays (
    songplay_id SERIAL PRIMARY KEY,
    start_time  time NOT NULL,
    user_id     varchar NOT NULL,
    level       varchar,
    song_id     varchar,
    artist_id   varchar,
    session_id  int,
    location    varchar,
    user_agent  varchar
)`

const UserTableCreate = `
CREATE TABLE IF NOT EXISTS users (
    user_id    varchar PRIMARY KEY,
    first_name varchar,
    last_name  varchar,
    gender     varchar,
    level      varchar
)`

const SongTableCreate = `
CREATE TABLE IF NOT EXISTS songs (
    song_id   varchar PRIMARY KEY,
    title     varchar,
    artist_id varchar,
    year      int,
    duration  float
)`

const ArtistTableCreate = `
CREATE TABLE IF NOT EXISTS artists (
    artist_id varchar PRIMARY KEY,
    name      varchar,
    location  varchar,
    lattitude numeric,
    longitude numeric
)`

const TimeTableCreate = `
CREATE TABLE IF NOT EXISTS time (
    start_time time PRIMARY KEY,
    hour       int,
    day        int,
    week       int,
    month      int,
    year       int,
    weekday    int
)`

// INSERT RECORDS

const SongplayTableInsert = `
INSERT INTO songplays (start_time, user_id, level, song_id, artist_id, session_id, location, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// UserTableInsert leaves a known user's stored level in place
const UserTableInsert = `
INSERT INTO users (user_id, first_name, last_name, gender, level)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET level = users.level`

const SongTableInsert = `
INSERT INTO songs (song_id, title, artist_id, year, duration)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT DO NOTHING`

const ArtistTableInsert = `
INSERT INTO artists (artist_id, name, location, lattitude, longitude)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT DO NOTHING`

const TimeTableInsert = `
INSERT INTO time (start_time, hour, day, week, month, year, weekday)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT DO NOTHING`

// FIND SONGS

// SongSelect resolves (title, artist name, duration) to song and artist ids
const SongSelect = `
SELECT s.song_id, s.artist_id FROM songs s
WHERE s.title = $1
  AND s.artist_id = (SELECT artist_id FROM artists WHERE name = $2 LIMIT 1)
  AND s.duration = $3`

// QUERY LISTS

// CreateTableQueries creates the star schema, fact table first
var CreateTableQueries = []string{
	SongplayTableCreate,
	UserTableCreate,
	SongTableCreate,
	ArtistTableCreate,
	TimeTableCreate,
}

// DropTableQueries drops the star schema in the same order
var DropTableQueries = []string{
	SongplayTableDrop,
	UserTableDrop,
	SongTableDrop,
	ArtistTableDrop,
	TimeTableDrop,
}

// Table groups the statements of one catalog table
type Table struct {
	Name   string
	Drop   string
	Create string
	Insert string
}

// Tables returns the catalog tables in list order
func Tables() []Table {
	return []Table{
		{Name: "songplays", Drop: SongplayTableDrop, Create: SongplayTableCreate, Insert: SongplayTableInsert},
		{Name: "users", Drop: UserTableDrop, Create: UserTableCreate, Insert: UserTableInsert},
		{Name: "songs", Drop: SongTableDrop, Create: SongTableCreate, Insert: SongTableInsert},
		{Name: "artists", Drop: ArtistTableDrop, Create: ArtistTableCreate, Insert: ArtistTableInsert},
		{Name: "time", Drop: TimeTableDrop, Create: TimeTableCreate, Insert: TimeTableInsert},
	}
}
