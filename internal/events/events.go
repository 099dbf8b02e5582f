// Package events creates user events and saves AI-discovered events.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-events/internal/model"
	"github.com/sells-group/nearby-events/internal/search"
	"github.com/sells-group/nearby-events/internal/spatial"
	"github.com/sells-group/nearby-events/internal/store"
	"github.com/sells-group/nearby-events/internal/tags"
	"github.com/sells-group/nearby-events/pkg/geocode"
	"github.com/sells-group/nearby-events/pkg/geohash"
)

const (
	// DefaultListLimit and MaxListLimit bound ListByCreator.
	DefaultListLimit = 200
	MaxListLimit     = 1000

	// StoredPrecision is the geohash length kept on each event.
	StoredPrecision = 6
)

// Store is the persistence the service needs.
type Store interface {
	PutEvent(ctx context.Context, ev *model.Event) error
	ListByCreator(ctx context.Context, q store.CreatorQuery) (*store.Page, error)
	SaveAIEvent(ctx context.Context, ev *model.AIEvent) (bool, error)
	GetAIEvent(ctx context.Context, eventID string) (*model.AIEvent, error)
}

// CreateInput is the body of a create request. EndTime, when set, is epoch
// seconds and wins over EndDateTime.
type CreateInput struct {
	Name           string               `json:"name" validate:"required"`
	Description    string               `json:"description"`
	CreatedByEmail string               `json:"createdByEmail" validate:"required,email"`
	DateTime       string               `json:"dateTime" validate:"required"`
	EndDateTime    string               `json:"endDateTime" validate:"required_without=EndTime"`
	EndTime        json.Number          `json:"endTime" validate:"required_without=EndDateTime"`
	Location       *model.EventLocation `json:"location"`
	Coordinates    *model.Coordinates   `json:"coordinates"`
	PhotoURLs      []string             `json:"photoUrls" validate:"omitempty,dive,url"`
}

// Service implements the event operations.
type Service struct {
	store    Store
	geocoder geocode.Client
	tags     *tags.Classifier
	validate *validator.Validate
	pageSize int
	now      func() time.Time
}

// New creates a Service. geocoder may be nil when every event carries
// coordinates.
func New(st Store, geocoder geocode.Client, classifier *tags.Classifier) *Service {
	if classifier == nil {
		classifier = tags.Default()
	}
	return &Service{
		store:    st,
		geocoder: geocoder,
		tags:     classifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		pageSize: store.DefaultPageSize,
		now:      time.Now,
	}
}

// Create builds an event from in and stores it.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Event, error) {
	ev, err := s.Build(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutEvent(ctx, ev); err != nil {
		return nil, eris.Wrapf(model.ErrUpstreamUnavailable, "events: put %s: %v", ev.EventID, err)
	}
	zap.L().Info("event created",
		zap.String("event_id", ev.EventID),
		zap.String("geohash", ev.Geohash),
		zap.Strings("tags", ev.Tags),
	)
	return ev, nil
}

// Build validates in and returns the event to store: times resolved to
// epoch seconds, coordinates geocoded when absent, geohash keys and tags set.
func (s *Service) Build(ctx context.Context, in CreateInput) (*model.Event, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.CreatedByEmail = strings.TrimSpace(in.CreatedByEmail)
	if err := s.validate.Struct(in); err != nil {
		return nil, eris.Wrapf(model.ErrValidationFailed,
			"name, createdByEmail, dateTime (start) and endDateTime (or endTime) are required: %v", err)
	}

	start, ok := search.ParseISO(in.DateTime)
	if !ok {
		return nil, eris.Wrap(model.ErrInvalidTimeRange, "dateTime must be ISO-8601")
	}
	end, err := endOf(in)
	if err != nil {
		return nil, err
	}
	if end < start.Unix() {
		return nil, eris.Wrap(model.ErrInvalidTimeRange, "end time must be after start time")
	}

	var loc model.EventLocation
	if in.Location != nil {
		loc = *in.Location
	}
	coords, err := s.coordinates(ctx, in.Coordinates, loc)
	if err != nil {
		return nil, err
	}

	gh, err := geohash.Encode(coords.Lat, coords.Lng, StoredPrecision)
	if err != nil {
		return nil, err
	}
	photos := in.PhotoURLs
	if photos == nil {
		photos = []string{}
	}

	return &model.Event{
		EventID:        uuid.NewString(),
		Name:           in.Name,
		Description:    in.Description,
		CreatedByEmail: in.CreatedByEmail,
		StartTime:      start.Unix(),
		EndTime:        end,
		Location:       loc,
		Coordinates:    coords,
		Geohash:        gh,
		GH5:            gh[:search.IndexPrecision],
		Tags:           s.tags.Select(in.Name, loc.Text()),
		PhotoURLs:      photos,
		CreatedAt:      s.now().UTC(),
	}, nil
}

func endOf(in CreateInput) (int64, error) {
	if in.EndTime != "" {
		if n, err := in.EndTime.Int64(); err == nil {
			return n, nil
		}
		f, err := in.EndTime.Float64()
		if err != nil {
			return 0, eris.Wrap(model.ErrInvalidTimeRange, "endTime must be epoch seconds")
		}
		return int64(f), nil
	}
	t, ok := search.ParseISO(in.EndDateTime)
	if !ok {
		return 0, eris.Wrap(model.ErrInvalidTimeRange, "endDateTime must be ISO-8601, or provide numeric endTime (epoch seconds)")
	}
	return t.Unix(), nil
}

func (s *Service) coordinates(ctx context.Context, given *model.Coordinates, loc model.EventLocation) (model.Coordinates, error) {
	if given != nil {
		if err := spatial.ValidateCoordinates(given.Lat, given.Lng); err != nil {
			return model.Coordinates{}, err
		}
		return *given, nil
	}

	query := loc.GeocodeQuery()
	if query == "" || s.geocoder == nil {
		return model.Coordinates{}, eris.Wrap(model.ErrInvalidLocation, "provide coordinates or a geocodable address/zip")
	}
	res, err := s.geocoder.Geocode(ctx, query)
	if err != nil {
		return model.Coordinates{}, eris.Wrapf(model.ErrUpstreamUnavailable, "events: geocode %q: %v", query, err)
	}
	if res == nil || !res.Matched {
		return model.Coordinates{}, eris.Wrap(model.ErrInvalidLocation, "provide coordinates or a geocodable address/zip")
	}
	return model.Coordinates{Lat: res.Latitude, Lng: res.Longitude}, nil
}

// ListByCreator returns up to limit events created by email, newest first.
// limit defaults to DefaultListLimit and is capped at MaxListLimit.
func (s *Service) ListByCreator(ctx context.Context, email string, limit int) ([]model.Event, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, eris.Wrap(model.ErrValidationFailed, "email is required")
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	items := make([]model.Event, 0, min(limit, s.pageSize))
	cursor := ""
	for len(items) < limit {
		page, err := s.store.ListByCreator(ctx, store.CreatorQuery{
			Email:  email,
			Cursor: cursor,
			Limit:  min(limit-len(items), s.pageSize),
		})
		if err != nil {
			return nil, eris.Wrapf(model.ErrUpstreamUnavailable, "events: list by %s: %v", email, err)
		}
		items = append(items, page.Items...)
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// SaveAIEvent stores a discovered event under eventID, generating an id when
// empty. Tags are reduced to vocabulary members and capped. Saving an id that already exists only refreshes its updated time;
// created reports which happened.
func (s *Service) SaveAIEvent(ctx context.Context, eventID string, c model.Candidate) (ev *model.AIEvent, created bool, err error) {
	ev, err = toAIEvent(c)
	if err != nil {
		return nil, false, err
	}
	ev.Tags = s.tags.Canonicalize(ev.Tags)
	if len(ev.Tags) > model.MaxStoredAITags {
		ev.Tags = ev.Tags[:model.MaxStoredAITags]
	}

	ev.EventID = strings.TrimSpace(eventID)
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	now := s.now().UTC()
	ev.CreatedAt, ev.UpdatedAt = now, now

	created, err = s.store.SaveAIEvent(ctx, ev)
	if err != nil {
		return nil, false, eris.Wrapf(model.ErrUpstreamUnavailable, "events: save ai event %s: %v", ev.EventID, err)
	}
	zap.L().Info("ai event saved",
		zap.String("event_id", ev.EventID),
		zap.Bool("created", created),
		zap.String("source_url", ev.SourceURL),
	)
	return ev, created, nil
}

// toAIEvent maps a candidate onto the stored shape. Tags that are not a list
// and a location that is not an object are dropped.
func toAIEvent(c model.Candidate) (*model.AIEvent, error) {
	for _, key := range []string{"title", "start_date", "timezone", "source_url"} {
		if strings.TrimSpace(c.String(key)) == "" {
			return nil, eris.Wrap(model.ErrValidationFailed,
				"event.title, event.start_date, event.timezone and event.source_url are required for AI events")
		}
	}

	in := c.Clone()
	if _, ok := in["tags"].([]any); !ok {
		if _, ok := in["tags"].([]string); !ok {
			delete(in, "tags")
		}
	}
	if in.Object("location") == nil {
		in["location"] = map[string]any{}
	}
	delete(in, "eventId")
	delete(in, "createdAt")
	delete(in, "updatedAt")

	raw, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrapf(model.ErrValidationFailed, "events: encode ai event: %v", err)
	}
	var ev model.AIEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, eris.Wrapf(model.ErrValidationFailed, "events: decode ai event: %v", err)
	}

	return &ev, nil
}

// GetAIEvent returns a saved AI event or an error wrapping model.ErrNotFound.
func (s *Service) GetAIEvent(ctx context.Context, eventID string) (*model.AIEvent, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, eris.Wrap(model.ErrValidationFailed, "eventId is required")
	}
	ev, err := s.store.GetAIEvent(ctx, eventID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrapf(model.ErrUpstreamUnavailable, "events: get ai event %s: %v", eventID, err)
	}
	return ev, nil
}
