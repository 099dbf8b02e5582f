package candidate

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nearby-events/internal/model"
)

// record is the accepted shape of a normalized candidate. checkKeys pins the
// key set before decoding; the validate tags cover presence and patterns.
type record struct {
	Title       string      `json:"title" validate:"required"`
	Description string      `json:"description"`
	StartDate   string      `json:"start_date" validate:"required,ymd"`
	EndDate     string      `json:"end_date" validate:"omitempty,ymd"`
	StartTime   string      `json:"start_time" validate:"omitempty,hhmm"`
	EndTime     string      `json:"end_time" validate:"omitempty,hhmm"`
	Timezone    string      `json:"timezone"`
	Location    *location   `json:"location"`
	Organizer   *organizer  `json:"organizer"`
	TicketInfo  *ticketInfo `json:"ticket_info"`
	Media       *media      `json:"media"`
	Tags        []string    `json:"tags"`
	SourceURL   string      `json:"source_url" validate:"required"`
}

type location struct {
	Venue     string   `json:"venue"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	Country   string   `json:"country"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

type organizer struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
	Phone        string `json:"phone"`
}

type ticketInfo struct {
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	PurchaseURL string `json:"purchase_url"`
}

type media struct {
	ImageURL string `json:"image_url"`
	VideoURL string `json:"video_url"`
}

// fieldKind is the JSON type a schema field must carry.
type fieldKind int

const (
	kindString fieldKind = iota
	kindOther
)

// recordFields is the closed, case-sensitive key set of a candidate. The
// nested objects have their own sets in objectFields.
var recordFields = map[string]fieldKind{
	"title":       kindString,
	"description": kindString,
	"start_date":  kindString,
	"end_date":    kindString,
	"start_time":  kindString,
	"end_time":    kindString,
	"timezone":    kindString,
	"location":    kindOther,
	"organizer":   kindOther,
	"ticket_info": kindOther,
	"media":       kindOther,
	"tags":        kindOther,
	"source_url":  kindString,
}

var objectFields = map[string]map[string]fieldKind{
	"location": {
		"venue": kindString, "address": kindString, "city": kindString,
		"state": kindString, "country": kindString,
		"latitude": kindOther, "longitude": kindOther,
	},
	"organizer":   {"name": kindString, "contact_email": kindString, "phone": kindString},
	"ticket_info": {"price": kindString, "currency": kindString, "purchase_url": kindString},
	"media":       {"image_url": kindString, "video_url": kindString},
}

// checkKeys rejects keys outside the schema, matched exactly, and string
// fields holding anything but a string, null included.
func checkKeys(c model.Candidate) error {
	if err := checkObject("", c, recordFields); err != nil {
		return err
	}
	for name, fields := range objectFields {
		v, ok := c[name]
		if !ok || v == nil {
			continue
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return eris.Wrapf(model.ErrValidationFailed, "%s must be an object", name)
		}
		if err := checkObject(name+".", obj, fields); err != nil {
			return err
		}
	}
	return nil
}

func checkObject(prefix string, obj map[string]any, fields map[string]fieldKind) error {
	for k, v := range obj {
		kind, ok := fields[k]
		if !ok {
			return eris.Wrapf(model.ErrValidationFailed, "unknown field %q", prefix+k)
		}
		if kind == kindString {
			if _, ok := v.(string); !ok {
				return eris.Wrapf(model.ErrValidationFailed, "%s%s must be a string", prefix, k)
			}
		}
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		return datePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return timePattern.MatchString(fl.Field().String())
	})
	return v
}

// validateRecord checks one candidate against the schema. strict also
// requires a timezone and a complete city/state/country.
func validateRecord(v *validator.Validate, c model.Candidate, strict bool) error {
	if err := checkKeys(c); err != nil {
		return err
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return eris.Wrapf(model.ErrValidationFailed, "encode: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var r record
	if err := dec.Decode(&r); err != nil {
		return eris.Wrapf(model.ErrValidationFailed, "decode: %v", err)
	}
	if err := v.Struct(r); err != nil {
		return eris.Wrapf(model.ErrValidationFailed, "%v", err)
	}
	if strict {
		if strings.TrimSpace(r.Timezone) == "" {
			return eris.Wrap(model.ErrValidationFailed, "timezone is required")
		}
		if !completeLocation(r.Location) {
			return eris.Wrap(model.ErrValidationFailed, "location city, state and country are required")
		}
	}
	return nil
}

func completeLocation(l *location) bool {
	return l != nil &&
		strings.TrimSpace(l.City) != "" &&
		strings.TrimSpace(l.State) != "" &&
		strings.TrimSpace(l.Country) != ""
}

// meetsMinimum is the relaxed filter used when a batch fails validation.
func meetsMinimum(c model.Candidate, strict bool) bool {
	if strings.TrimSpace(c.String("title")) == "" ||
		strings.TrimSpace(c.String("source_url")) == "" ||
		!IsDate(c.String("start_date")) {
		return false
	}
	if !strict {
		return true
	}
	if strings.TrimSpace(c.String("timezone")) == "" {
		return false
	}
	loc := c.Object("location")
	if loc == nil {
		return false
	}
	for _, k := range []string{"city", "state", "country"} {
		if s, _ := loc[k].(string); strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}
