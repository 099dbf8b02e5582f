package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-events/internal/discovery"
	"github.com/sells-group/nearby-events/internal/events"
	"github.com/sells-group/nearby-events/internal/model"
	"github.com/sells-group/nearby-events/internal/search"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		zap.L().Warn("readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := searchQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Search.Search(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// searchQuery reads the search parameters. Coordinates and radius must be
// numeric when present.
func searchQuery(v url.Values) (search.Query, error) {
	lat, err := optionalFloat(v, "lat")
	if err != nil {
		return search.Query{}, eris.Wrap(model.ErrInvalidCoordinate, "lat must be numeric")
	}
	lng, err := optionalFloat(v, "lng")
	if err != nil {
		return search.Query{}, eris.Wrap(model.ErrInvalidCoordinate, "lng must be numeric")
	}

	radiusKey := "radiusMiles"
	if !v.Has(radiusKey) {
		radiusKey = "radius_miles"
	}
	radius, err := optionalFloat(v, radiusKey)
	if err != nil {
		return search.Query{}, eris.Wrap(model.ErrValidationFailed, "radiusMiles must be numeric")
	}

	q := search.Query{
		Center: search.CenterInput{
			Lat:     lat,
			Lng:     lng,
			Address: v.Get("address"),
			City:    v.Get("city"),
			State:   v.Get("state"),
			Zip:     v.Get("zip"),
			Country: v.Get("country"),
		},
		Window: search.WindowInput{
			StartTime: v.Get("startTime"),
			EndTime:   v.Get("endTime"),
			Date:      v.Get("date"),
			Time:      v.Get("time"),
			EndDate:   v.Get("endDate"),
		},
	}
	if radius != nil {
		q.RadiusMiles = *radius
	}
	if wm, err := optionalFloat(v, "windowMinutes"); err == nil && wm != nil {
		q.Window.WindowMinutes = *wm
	}
	if tags := v.Get("tags"); tags != "" {
		q.Tags = tags
	}
	return q, nil
}

func optionalFloat(v url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in events.CreateInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	ev, err := s.deps.Events.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Event created", "eventId": ev.EventID})
}

func (s *Server) handleByUser(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.deps.Events.ListByCreator(r.Context(), r.URL.Query().Get("email"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(items), "items": items})
}

func (s *Server) handleSearchAI(w http.ResponseWriter, r *http.Request) {
	if s.deps.Finder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "AI discovery is not configured"})
		return
	}
	items, err := s.deps.Finder.Find(r.Context(), discovery.RequestFromQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(items), "items": items})
}

type saveAIEventRequest struct {
	EventID string          `json:"eventId"`
	Event   model.Candidate `json:"event"`
}

func (s *Server) handleSaveAIEvent(w http.ResponseWriter, r *http.Request) {
	var req saveAIEventRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Event == nil {
		req.Event = model.Candidate{}
	}
	ev, created, err := s.deps.Events.SaveAIEvent(r.Context(), req.EventID, req.Event)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"message": "Event saved", "eventId": ev.EventID, "created": created})
}

func (s *Server) handleGetAIEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.deps.Events.GetAIEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": ev})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return eris.Wrapf(model.ErrValidationFailed, "invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidCoordinate),
		errors.Is(err, model.ErrInvalidLocation),
		errors.Is(err, model.ErrInvalidTimeRange),
		errors.Is(err, model.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, model.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		msg = "Event not found"
	case http.StatusGatewayTimeout:
		msg = "Upstream timed out"
	case http.StatusBadGateway:
		msg = "Upstream unavailable"
	case http.StatusInternalServerError:
		msg = "Internal Server Error"
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]string{"message": msg})
}
