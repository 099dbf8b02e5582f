package importer

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nearby-events/internal/events"
	"github.com/sells-group/nearby-events/internal/model"
)

type column int

const (
	colName column = iota
	colDescription
	colEmail
	colStart
	colEndDateTime
	colEndTime
	colLat
	colLng
	colVenue
	colAddress
	colCity
	colState
	colZip
	colCountry
	colPhotos
)

// headerAliases maps a folded header (lower case, letters and digits only)
// to its column.
var headerAliases = map[string]column{
	"name":           colName,
	"title":          colName,
	"description":    colDescription,
	"createdbyemail": colEmail,
	"email":          colEmail,
	"datetime":       colStart,
	"start":          colStart,
	"startdatetime":  colStart,
	"enddatetime":    colEndDateTime,
	"end":            colEndDateTime,
	"endtime":        colEndTime,
	"lat":            colLat,
	"latitude":       colLat,
	"lng":            colLng,
	"lon":            colLng,
	"longitude":      colLng,
	"venue":          colVenue,
	"locationname":   colVenue,
	"address":        colAddress,
	"city":           colCity,
	"state":          colState,
	"zip":            colZip,
	"postalcode":     colZip,
	"country":        colCountry,
	"photourls":      colPhotos,
	"photos":         colPhotos,
}

// Mapping resolves header positions once per table.
type Mapping struct {
	index map[column]int
}

// NewMapping matches header cells against the known aliases. Unknown
// columns are ignored; the name column is required.
func NewMapping(header []string) (*Mapping, error) {
	m := &Mapping{index: make(map[column]int)}
	for i, h := range header {
		col, ok := headerAliases[foldHeader(h)]
		if !ok {
			continue
		}
		if _, dup := m.index[col]; !dup {
			m.index[col] = i
		}
	}
	if _, ok := m.index[colName]; !ok {
		return nil, eris.New("importer: header has no name column")
	}
	return m, nil
}

func foldHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (m *Mapping) get(row []string, col column) string {
	i, ok := m.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// Input converts one row into a create request. Coordinates are set only
// when both lat and lng parse; photo URLs split on ';' or '|'.
func (m *Mapping) Input(row []string) (events.CreateInput, error) {
	in := events.CreateInput{
		Name:           m.get(row, colName),
		Description:    m.get(row, colDescription),
		CreatedByEmail: m.get(row, colEmail),
		DateTime:       m.get(row, colStart),
		EndDateTime:    m.get(row, colEndDateTime),
		EndTime:        json.Number(m.get(row, colEndTime)),
	}

	loc := model.EventLocation{
		Name:    m.get(row, colVenue),
		Address: m.get(row, colAddress),
		City:    m.get(row, colCity),
		State:   m.get(row, colState),
		Zip:     m.get(row, colZip),
		Country: m.get(row, colCountry),
	}
	if loc != (model.EventLocation{}) {
		in.Location = &loc
	}

	latRaw, lngRaw := m.get(row, colLat), m.get(row, colLng)
	if latRaw != "" || lngRaw != "" {
		lat, errLat := strconv.ParseFloat(latRaw, 64)
		lng, errLng := strconv.ParseFloat(lngRaw, 64)
		if errLat != nil || errLng != nil {
			return in, eris.Wrapf(model.ErrInvalidCoordinate, "importer: lat %q lng %q", latRaw, lngRaw)
		}
		in.Coordinates = &model.Coordinates{Lat: lat, Lng: lng}
	}

	if raw := m.get(row, colPhotos); raw != "" {
		for _, p := range strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == '|' }) {
			if p = strings.TrimSpace(p); p != "" {
				in.PhotoURLs = append(in.PhotoURLs, p)
			}
		}
	}
	return in, nil
}
