package model

import (
	"strings"
	"time"
)

// MaxStoredAITags caps the tags persisted with a saved AI event.
const MaxStoredAITags = 5

// Candidate is an unvalidated event object as returned by a text-generation
// provider. Fields are loosely typed until the normalizer has run.
type Candidate map[string]any

// String returns the value at key when it is a string, else "".
func (c Candidate) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Object returns the nested object at key, or nil when absent or not an object.
func (c Candidate) Object(key string) map[string]any {
	m, _ := c[key].(map[string]any)
	return m
}

// Clone returns a shallow copy with nested objects copied one level deep.
func (c Candidate) Clone() Candidate {
	out := make(Candidate, len(c))
	for k, v := range c {
		if m, ok := v.(map[string]any); ok {
			cp := make(map[string]any, len(m))
			for mk, mv := range m {
				cp[mk] = mv
			}
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

// AILocation is the location block of an AI event.
type AILocation struct {
	Venue     string   `json:"venue,omitempty"`
	Address   string   `json:"address,omitempty"`
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// Text joins the descriptive location parts for keyword classification.
func (l AILocation) Text() string {
	return JoinNonEmpty(" ", l.Venue, l.Address, l.City, l.State)
}

// Organizer describes who runs an AI event.
type Organizer struct {
	Name         string `json:"name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// TicketInfo describes pricing for an AI event.
type TicketInfo struct {
	Price       string `json:"price,omitempty"`
	Currency    string `json:"currency,omitempty"`
	PurchaseURL string `json:"purchase_url,omitempty"`
}

// Media holds optional media links for an AI event.
type Media struct {
	ImageURL string `json:"image_url,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
}

// AIEvent is a normalized candidate persisted after a user saves it.
type AIEvent struct {
	EventID     string      `json:"eventId"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date,omitempty"`
	StartTime   string      `json:"start_time,omitempty"`
	EndTime     string      `json:"end_time,omitempty"`
	Timezone    string      `json:"timezone"`
	Location    AILocation  `json:"location"`
	Organizer   *Organizer  `json:"organizer,omitempty"`
	TicketInfo  *TicketInfo `json:"ticket_info,omitempty"`
	Media       *Media      `json:"media,omitempty"`
	Tags        []string    `json:"tags"`
	SourceURL   string      `json:"source_url"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// JoinNonEmpty trims each part and joins the non-empty ones with sep.
func JoinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
