// Package catalog records converted tracks in a sqlite database.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"utm-converter/track"
)

const schema = `
create table if not exists tracks(
	id integer primary key autoincrement,
	source text,
	destination text,
	start text,
	created text,
	samples integer
);
create table if not exists samples(
	track_id integer references tracks(id),
	seq integer,
	elapsed float64,
	lon float64,
	lat float64,
	alt float64,
	speed float64
);
`

const timeFormat = "2006-01-02T15:04:05.000000Z"

// Entry describes one converted track.
type Entry struct {
	ID          int64
	Source      string
	Destination string
	Start       time.Time
	Created     time.Time
	Samples     int
}

type Catalog struct {
	db *sql.DB
}

func Open(fileName string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", fileName)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{db: db}, nil
}

// Add stores a track and its samples in one transaction and returns the new
// track id.
func (c *Catalog) Add(e Entry, t track.Track) (int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
			insert into tracks(source, destination, start, created, samples)
			values(?, ?, ?, ?, ?)`,
		e.Source, e.Destination, e.Start.UTC().Format(timeFormat), e.Created.UTC().Format(timeFormat), len(t))
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
			insert into samples(track_id, seq, elapsed, lon, lat, alt, speed)
			values(?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, s := range t {
		if _, err := stmt.Exec(id, i, s.Elapsed, s.Lon, s.Lat, s.Alt, s.Speed); err != nil {
			return 0, err
		}
	}

	return id, tx.Commit()
}

// Entries lists the catalogued tracks in insertion order.
func (c *Catalog) Entries() ([]Entry, error) {
	rows, err := c.db.Query(`select id, source, destination, start, created, samples from tracks order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e              Entry
			start, created string
		)
		if err := rows.Scan(&e.ID, &e.Source, &e.Destination, &start, &created, &e.Samples); err != nil {
			return nil, err
		}
		var err error
		if e.Start, err = time.Parse(timeFormat, start); err != nil {
			return nil, fmt.Errorf("track %d start: %w", e.ID, err)
		}
		if e.Created, err = time.Parse(timeFormat, created); err != nil {
			return nil, fmt.Errorf("track %d created: %w", e.ID, err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Track loads the samples of a catalogued track.
func (c *Catalog) Track(id int64) (track.Track, error) {
	rows, err := c.db.Query(`select elapsed, lon, lat, alt, speed from samples where track_id = ? order by seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var t track.Track
	for rows.Next() {
		var s track.Sample
		if err := rows.Scan(&s.Elapsed, &s.Lon, &s.Lat, &s.Alt, &s.Speed); err != nil {
			return nil, err
		}
		t = append(t, s)
	}

	return t, rows.Err()
}

func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}

	return nil
}
