package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/nearby-events/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "nearby.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS events (
	event_id         TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	created_by_email TEXT NOT NULL,
	start_time       INTEGER NOT NULL,
	end_time         INTEGER NOT NULL,
	location         TEXT NOT NULL DEFAULT '{}',
	lat              REAL NOT NULL,
	lng              REAL NOT NULL,
	geohash          TEXT NOT NULL,
	gh5              TEXT NOT NULL,
	tags             TEXT NOT NULL DEFAULT '[]',
	photo_urls       TEXT NOT NULL DEFAULT '[]',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_events_geo_time ON events(gh5, start_time, event_id);
CREATE INDEX IF NOT EXISTS idx_events_creator_time ON events(created_by_email, start_time, event_id);

CREATE TABLE IF NOT EXISTS ai_events (
	event_id    TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	start_date  TEXT NOT NULL,
	end_date    TEXT,
	start_time  TEXT,
	end_time    TEXT,
	timezone    TEXT NOT NULL,
	location    TEXT NOT NULL DEFAULT '{}',
	organizer   TEXT,
	ticket_info TEXT,
	media       TEXT,
	tags        TEXT NOT NULL DEFAULT '[]',
	source_url  TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertEvent = `INSERT INTO events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) PutEvent(ctx context.Context, ev *model.Event) error {
	args, err := sqliteEventArgs(ev)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteInsertEvent, args...)
	return eris.Wrapf(err, "sqlite: insert event %s", ev.EventID)
}

func (s *SQLiteStore) ImportEvents(ctx context.Context, evs []model.Event) (int64, error) {
	if len(evs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE`+sqliteInsertEvent[len("INSERT"):])
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import prepare")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for i := range evs {
		args, err := sqliteEventArgs(&evs[i])
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import event %s", evs[i].EventID)
		}
		n++
	}
	return n, eris.Wrap(tx.Commit(), "sqlite: import commit")
}

func (s *SQLiteStore) QueryCell(ctx context.Context, q CellQuery) (*Page, error) {
	limit := pageLimit(q.Limit)
	query := `SELECT ` + eventColumns + ` FROM events WHERE gh5 = ?`
	args := []any{q.Cell}

	if q.Start != nil {
		query += ` AND MAX(start_time, end_time) >= ?`
		args = append(args, *q.Start)
	}
	if q.End != nil {
		query += ` AND start_time <= ?`
		args = append(args, *q.End)
	}
	if q.Cursor != "" {
		c, err := decodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		query += ` AND (start_time, event_id) > (?, ?)`
		args = append(args, c.startTime, c.eventID)
	}
	query += ` ORDER BY start_time, event_id LIMIT ?`
	args = append(args, limit+1)

	items, err := s.queryEvents(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query cell %s", q.Cell)
	}
	return pageOf(items, limit), nil
}

func (s *SQLiteStore) ListByCreator(ctx context.Context, q CreatorQuery) (*Page, error) {
	limit := pageLimit(q.Limit)
	query := `SELECT ` + eventColumns + ` FROM events WHERE created_by_email = ?`
	args := []any{q.Email}

	if q.Cursor != "" {
		c, err := decodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		query += ` AND (start_time, event_id) < (?, ?)`
		args = append(args, c.startTime, c.eventID)
	}
	query += ` ORDER BY start_time DESC, event_id DESC LIMIT ?`
	args = append(args, limit+1)

	items, err := s.queryEvents(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list events by %s", q.Email)
	}
	return pageOf(items, limit), nil
}

func (s *SQLiteStore) queryEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var items []model.Event
	for rows.Next() {
		var ev model.Event
		var loc, tags, photos string
		if err := rows.Scan(
			&ev.EventID, &ev.Name, &ev.Description, &ev.CreatedByEmail, &ev.StartTime, &ev.EndTime,
			&loc, &ev.Coordinates.Lat, &ev.Coordinates.Lng, &ev.Geohash, &ev.GH5,
			&tags, &photos, &ev.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "scan event")
		}
		if err := unmarshalColumns(ev.EventID,
			column{loc, &ev.Location}, column{tags, &ev.Tags}, column{photos, &ev.PhotoURLs},
		); err != nil {
			return nil, err
		}
		items = append(items, ev)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) SaveAIEvent(ctx context.Context, ev *model.AIEvent) (bool, error) {
	loc, org, ticket, media, err := aiEventJSON(ev)
	if err != nil {
		return false, err
	}
	tags, err := json.Marshal(nonNilStrings(ev.Tags))
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal tags")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_events (event_id, title, description, start_date, end_date, start_time, end_time, timezone, location, organizer, ticket_info, media, tags, source_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(event_id) DO NOTHING`,
		ev.EventID, ev.Title, ev.Description, ev.StartDate,
		nullString(ev.EndDate), nullString(ev.StartTime), nullString(ev.EndTime), ev.Timezone,
		string(loc), nullBytes(org), nullBytes(ticket), nullBytes(media), string(tags), ev.SourceURL,
		ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert ai event %s", ev.EventID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 1 {
		return true, nil
	}

	_, err = s.db.ExecContext(ctx, `UPDATE ai_events SET updated_at = ? WHERE event_id = ?`, ev.UpdatedAt, ev.EventID)
	return false, eris.Wrapf(err, "sqlite: touch ai event %s", ev.EventID)
}

func (s *SQLiteStore) GetAIEvent(ctx context.Context, eventID string) (*model.AIEvent, error) {
	var ev model.AIEvent
	var loc, tags string
	var org, ticket, media sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT `+aiEventColumns+` FROM ai_events WHERE event_id = ?`, eventID).Scan(
		&ev.EventID, &ev.Title, &ev.Description, &ev.StartDate, &ev.EndDate, &ev.StartTime, &ev.EndTime,
		&ev.Timezone, &loc, &org, &ticket, &media, &tags, &ev.SourceURL, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "sqlite: ai event %s", eventID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get ai event %s", eventID)
	}
	if err := unmarshalColumns(eventID, column{tags, &ev.Tags}); err != nil {
		return nil, err
	}
	if err := decodeAIEventJSON(&ev, []byte(loc), []byte(org.String), []byte(ticket.String), []byte(media.String)); err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode ai event %s", eventID)
	}
	return &ev, nil
}

func sqliteEventArgs(ev *model.Event) ([]any, error) {
	args, err := eventArgs(ev)
	if err != nil {
		return nil, err
	}
	tags, err := json.Marshal(args[11])
	if err != nil {
		return nil, eris.Wrap(err, "marshal event tags")
	}
	photos, err := json.Marshal(args[12])
	if err != nil {
		return nil, eris.Wrap(err, "marshal event photos")
	}
	args[6] = string(args[6].([]byte))
	args[11] = string(tags)
	args[12] = string(photos)
	return args, nil
}

type column struct {
	raw  string
	dest any
}

func unmarshalColumns(id string, cols ...column) error {
	for _, c := range cols {
		if c.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c.raw), c.dest); err != nil {
			return eris.Wrapf(err, "sqlite: unmarshal column for %s", id)
		}
	}
	return nil
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
