package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nearby-events/internal/db"
	"github.com/sells-group/nearby-events/internal/model"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

const eventColumns = `event_id, name, description, created_by_email, start_time, end_time, location, lat, lng, geohash, gh5, tags, photo_urls, created_at`

const aiEventColumns = `event_id, title, description, start_date, COALESCE(end_date, ''), COALESCE(start_time, ''), COALESCE(end_time, ''), timezone, location, organizer, ticket_info, media, tags, source_url, created_at, updated_at`

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_event":  `INSERT INTO events (` + eventColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
	"get_ai_event":  `SELECT ` + aiEventColumns + ` FROM ai_events WHERE event_id = $1`,
	"save_ai_event": saveAIEventSQL,
}

const saveAIEventSQL = `INSERT INTO ai_events (event_id, title, description, start_date, end_date, start_time, end_time, timezone, location, organizer, ticket_info, media, tags, source_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (event_id) DO UPDATE SET updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0)`

// NewPostgres connects a pool and returns a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg, preparedStatements)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. The caller keeps ownership.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return eris.Wrap(db.Migrate(ctx, s.pool, postgresMigrations, "migrations/postgres"), "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) PutEvent(ctx context.Context, ev *model.Event) error {
	args, err := eventArgs(ev)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, preparedStatements["insert_event"], args...)
	return eris.Wrapf(err, "postgres: insert event %s", ev.EventID)
}

// ImportEvents bulk-loads evs, overwriting rows with the same event_id.
func (s *PostgresStore) ImportEvents(ctx context.Context, evs []model.Event) (int64, error) {
	rows := make([][]any, 0, len(evs))
	for i := range evs {
		args, err := eventArgs(&evs[i])
		if err != nil {
			return 0, err
		}
		rows = append(rows, args)
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "events",
		Columns:      eventColumnList,
		ConflictKeys: []string{"event_id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: import events")
}

var eventColumnList = []string{
	"event_id", "name", "description", "created_by_email", "start_time", "end_time", "location",
	"lat", "lng", "geohash", "gh5", "tags", "photo_urls", "created_at",
}

func (s *PostgresStore) QueryCell(ctx context.Context, q CellQuery) (*Page, error) {
	limit := pageLimit(q.Limit)
	query := `SELECT ` + eventColumns + ` FROM events WHERE gh5 = $1`
	args := []any{q.Cell}

	if q.Start != nil {
		args = append(args, *q.Start)
		query += fmt.Sprintf(` AND GREATEST(start_time, end_time) >= $%d`, len(args))
	}
	if q.End != nil {
		args = append(args, *q.End)
		query += fmt.Sprintf(` AND start_time <= $%d`, len(args))
	}
	if q.Cursor != "" {
		c, err := decodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		args = append(args, c.startTime, c.eventID)
		query += fmt.Sprintf(` AND (start_time, event_id) > ($%d, $%d)`, len(args)-1, len(args))
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(` ORDER BY start_time, event_id LIMIT $%d`, len(args))

	items, err := s.queryEvents(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query cell %s", q.Cell)
	}
	return pageOf(items, limit), nil
}

func (s *PostgresStore) ListByCreator(ctx context.Context, q CreatorQuery) (*Page, error) {
	limit := pageLimit(q.Limit)
	query := `SELECT ` + eventColumns + ` FROM events WHERE created_by_email = $1`
	args := []any{q.Email}

	if q.Cursor != "" {
		c, err := decodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		args = append(args, c.startTime, c.eventID)
		query += ` AND (start_time, event_id) < ($2, $3)`
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(` ORDER BY start_time DESC, event_id DESC LIMIT $%d`, len(args))

	items, err := s.queryEvents(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list events by %s", q.Email)
	}
	return pageOf(items, limit), nil
}

func (s *PostgresStore) queryEvents(ctx context.Context, query string, args ...any) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Event
	for rows.Next() {
		var ev model.Event
		var locJSON []byte
		if err := rows.Scan(
			&ev.EventID, &ev.Name, &ev.Description, &ev.CreatedByEmail, &ev.StartTime, &ev.EndTime,
			&locJSON, &ev.Coordinates.Lat, &ev.Coordinates.Lng, &ev.Geohash, &ev.GH5,
			&ev.Tags, &ev.PhotoURLs, &ev.CreatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "scan event")
		}
		if len(locJSON) > 0 {
			if err := json.Unmarshal(locJSON, &ev.Location); err != nil {
				return nil, eris.Wrapf(err, "unmarshal location for %s", ev.EventID)
			}
		}
		items = append(items, ev)
	}
	return items, rows.Err()
}

func (s *PostgresStore) SaveAIEvent(ctx context.Context, ev *model.AIEvent) (bool, error) {
	loc, org, ticket, media, err := aiEventJSON(ev)
	if err != nil {
		return false, err
	}

	var created bool
	err = s.pool.QueryRow(ctx, saveAIEventSQL,
		ev.EventID, ev.Title, ev.Description, ev.StartDate,
		nullString(ev.EndDate), nullString(ev.StartTime), nullString(ev.EndTime), ev.Timezone,
		loc, org, ticket, media, nonNilStrings(ev.Tags), ev.SourceURL, ev.CreatedAt, ev.UpdatedAt,
	).Scan(&created)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: save ai event %s", ev.EventID)
	}
	return created, nil
}

func (s *PostgresStore) GetAIEvent(ctx context.Context, eventID string) (*model.AIEvent, error) {
	var ev model.AIEvent
	var loc, org, ticket, media []byte
	err := s.pool.QueryRow(ctx, preparedStatements["get_ai_event"], eventID).Scan(
		&ev.EventID, &ev.Title, &ev.Description, &ev.StartDate, &ev.EndDate, &ev.StartTime, &ev.EndTime,
		&ev.Timezone, &loc, &org, &ticket, &media, &ev.Tags, &ev.SourceURL, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "postgres: ai event %s", eventID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get ai event %s", eventID)
	}
	if err := decodeAIEventJSON(&ev, loc, org, ticket, media); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode ai event %s", eventID)
	}
	return &ev, nil
}

func eventArgs(ev *model.Event) ([]any, error) {
	loc, err := json.Marshal(ev.Location)
	if err != nil {
		return nil, eris.Wrap(err, "marshal event location")
	}
	return []any{
		ev.EventID, ev.Name, ev.Description, ev.CreatedByEmail, ev.StartTime, ev.EndTime, loc,
		ev.Coordinates.Lat, ev.Coordinates.Lng, ev.Geohash, ev.GH5,
		nonNilStrings(ev.Tags), nonNilStrings(ev.PhotoURLs), ev.CreatedAt,
	}, nil
}

func aiEventJSON(ev *model.AIEvent) (loc, org, ticket, media []byte, err error) {
	if loc, err = json.Marshal(ev.Location); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "marshal ai event location")
	}
	if org, err = optionalJSON(ev.Organizer); err != nil {
		return nil, nil, nil, nil, err
	}
	if ticket, err = optionalJSON(ev.TicketInfo); err != nil {
		return nil, nil, nil, nil, err
	}
	if media, err = optionalJSON(ev.Media); err != nil {
		return nil, nil, nil, nil, err
	}
	return loc, org, ticket, media, nil
}

func optionalJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	return b, eris.Wrap(err, "marshal ai event field")
}

func decodeAIEventJSON(ev *model.AIEvent, loc, org, ticket, media []byte) error {
	if len(loc) > 0 {
		if err := json.Unmarshal(loc, &ev.Location); err != nil {
			return eris.Wrap(err, "unmarshal location")
		}
	}
	var err error
	if ev.Organizer, err = decodeOptional[model.Organizer](org); err != nil {
		return err
	}
	if ev.TicketInfo, err = decodeOptional[model.TicketInfo](ticket); err != nil {
		return err
	}
	ev.Media, err = decodeOptional[model.Media](media)
	return err
}

func decodeOptional[T any](b []byte) (*T, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal(b, v); err != nil {
		return nil, eris.Wrap(err, "unmarshal optional field")
	}
	return v, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
