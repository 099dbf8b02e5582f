// Package store persists events in a (cell, time) range index and keeps
// saved AI events. Postgres is the production driver; SQLite serves local
// runs and tests.
package store

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nearby-events/internal/db"
	"github.com/sells-group/nearby-events/internal/model"
)

// DefaultPageSize is used when a query does not set Limit.
const DefaultPageSize = 100

// CellQuery is one range query against the spatial index: an exact match on
// the precision-5 cell plus optional overlap bounds in epoch seconds. Start
// keeps events still running at or after it and End keeps events starting
// at or before it; nil leaves that side open. Cursor continues a previous
// page.
type CellQuery struct {
	Cell   string
	Start  *int64
	End    *int64
	Cursor string
	Limit  int
}

// CreatorQuery lists events created by one user, newest first.
type CreatorQuery struct {
	Email  string
	Cursor string
	Limit  int
}

// Page is a page of events plus the continuation cursor, empty when exhausted.
type Page struct {
	Items []model.Event
	Next  string
}

// SpatialIndex is the range-query surface used by the search planner.
type SpatialIndex interface {
	QueryCell(ctx context.Context, q CellQuery) (*Page, error)
}

// Store is the full persistence surface.
type Store interface {
	SpatialIndex

	// Events
	PutEvent(ctx context.Context, ev *model.Event) error
	ImportEvents(ctx context.Context, evs []model.Event) (int64, error)
	ListByCreator(ctx context.Context, q CreatorQuery) (*Page, error)

	// AI events. SaveAIEvent inserts ev or, when the id already exists,
	// only refreshes updated_at; created reports which happened.
	SaveAIEvent(ctx context.Context, ev *model.AIEvent) (created bool, err error)
	GetAIEvent(ctx context.Context, eventID string) (*model.AIEvent, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures the store driver.
type Config struct {
	Driver      string        `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open returns the store for cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &cfg.Pool)
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// cursor is a keyset position: the (start_time, event_id) of the last item
// on the previous page.
type cursor struct {
	startTime int64
	eventID   string
}

func encodeCursor(ev model.Event) string {
	raw := strconv.FormatInt(ev.StartTime, 10) + ":" + ev.EventID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return cursor{}, eris.Wrap(model.ErrValidationFailed, "store: malformed cursor")
	}
	ts, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return cursor{}, eris.Wrap(model.ErrValidationFailed, "store: malformed cursor")
	}
	n, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return cursor{}, eris.Wrap(model.ErrValidationFailed, "store: malformed cursor")
	}
	return cursor{startTime: n, eventID: id}, nil
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	return limit
}

// pageOf trims items fetched with limit+1 and derives the next cursor.
func pageOf(items []model.Event, limit int) *Page {
	if len(items) <= limit {
		return &Page{Items: items}
	}
	items = items[:limit]
	return &Page{Items: items, Next: encodeCursor(items[limit-1])}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
