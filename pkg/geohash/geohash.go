// Package geohash encodes coordinates into base32 geohash cells and walks the
// cell adjacency graph used by the radius search planner.
//
// Precision determines the cell size:
//
//	1 → ~5000 km    4 → ~39 km     7 → ~153 m
//	2 → ~1250 km    5 → ~4.9 km    8 → ~38 m
//	3 → ~156 km     6 → ~1.2 km    9 → ~4.8 m
package geohash

import (
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

const (
	base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

	// MaxPrecision is the longest hash Encode will produce.
	MaxPrecision = 12
)

// ErrInvalidCoordinate is returned for non-finite or out-of-range coordinates.
var ErrInvalidCoordinate = eris.New("geohash: invalid coordinate")

// ErrInvalidHash is returned when a hash contains characters outside the alphabet.
var ErrInvalidHash = eris.New("geohash: invalid hash")

var base32Index [256]int8

func init() {
	for i := range base32Index {
		base32Index[i] = -1
	}
	for i := 0; i < len(base32); i++ {
		base32Index[base32[i]] = int8(i)
	}
}

// Encode converts a latitude/longitude pair into a geohash of the given precision.
// Longitude is bisected on even bits and latitude on odd bits; every 5 bits
// become one base32 character.
func Encode(lat, lng float64, precision int) (string, error) {
	if !validLatLng(lat, lng) {
		return "", eris.Wrapf(ErrInvalidCoordinate, "lat=%v lng=%v", lat, lng)
	}
	if precision < 1 || precision > MaxPrecision {
		return "", eris.Errorf("geohash: precision %d out of range 1..%d", precision, MaxPrecision)
	}

	minLat, maxLat := -90.0, 90.0
	minLng, maxLng := -180.0, 180.0

	var hash strings.Builder
	hash.Grow(precision)
	evenBit := true
	bit, ch := 0, 0

	for hash.Len() < precision {
		if evenBit {
			mid := (minLng + maxLng) / 2
			if lng >= mid {
				ch = ch<<1 | 1
				minLng = mid
			} else {
				ch <<= 1
				maxLng = mid
			}
		} else {
			mid := (minLat + maxLat) / 2
			if lat >= mid {
				ch = ch<<1 | 1
				minLat = mid
			} else {
				ch <<= 1
				maxLat = mid
			}
		}
		evenBit = !evenBit

		bit++
		if bit == 5 {
			hash.WriteByte(base32[ch])
			bit, ch = 0, 0
		}
	}

	return hash.String(), nil
}

// Bounds returns the lng/lat bounding box of the cell identified by hash.
func Bounds(hash string) (*geom.Bounds, error) {
	hash = strings.ToLower(hash)
	if err := validateHash(hash); err != nil {
		return nil, err
	}

	minLat, maxLat := -90.0, 90.0
	minLng, maxLng := -180.0, 180.0
	evenBit := true

	for i := 0; i < len(hash); i++ {
		cd := base32Index[hash[i]]
		for mask := int8(16); mask > 0; mask >>= 1 {
			if evenBit {
				mid := (minLng + maxLng) / 2
				if cd&mask != 0 {
					minLng = mid
				} else {
					maxLng = mid
				}
			} else {
				mid := (minLat + maxLat) / 2
				if cd&mask != 0 {
					minLat = mid
				} else {
					maxLat = mid
				}
			}
			evenBit = !evenBit
		}
	}

	return geom.NewBounds(geom.XY).Set(minLng, minLat, maxLng, maxLat), nil
}

// Decode returns the center of the cell identified by hash.
func Decode(hash string) (lat, lng float64, err error) {
	b, err := Bounds(hash)
	if err != nil {
		return 0, 0, err
	}
	return (b.Min(1) + b.Max(1)) / 2, (b.Min(0) + b.Max(0)) / 2, nil
}

// Direction names one side of a cell.
type Direction int

// Cell sides.
const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

// neighborTable and borderTable are indexed by [direction][parity], where
// parity 0 is an even-length hash and 1 is odd-length.
var neighborTable = [4][2]string{
	North: {"p0r21436x8zb9dcf5h7kjnmqesgutwvy", "bc01fg45238967deuvhjyznpkmstqrwx"},
	South: {"14365h7k9dcfesgujnmqp0r2twvyx8zb", "238967debc01fg45kmstqrwxuvhjyznp"},
	East:  {"bc01fg45238967deuvhjyznpkmstqrwx", "p0r21436x8zb9dcf5h7kjnmqesgutwvy"},
	West:  {"238967debc01fg45kmstqrwxuvhjyznp", "14365h7k9dcfesgujnmqp0r2twvyx8zb"},
}

var borderTable = [4][2]string{
	North: {"prxz", "bcfguvyz"},
	South: {"028b", "0145hjnp"},
	East:  {"bcfguvyz", "prxz"},
	West:  {"0145hjnp", "028b"},
}

// Adjacent returns the cell next to hash on the given side.
func Adjacent(hash string, dir Direction) (string, error) {
	hash = strings.ToLower(hash)
	if err := validateHash(hash); err != nil {
		return "", err
	}
	if dir < North || dir > West {
		return "", eris.Errorf("geohash: unknown direction %d", dir)
	}
	return adjacent(hash, dir), nil
}

// adjacent assumes a valid, non-empty, lowercase hash. When the last character
// sits on the parent cell's border the parent must move first; at the top
// level there is no parent and the table wraps around.
func adjacent(hash string, dir Direction) string {
	last := hash[len(hash)-1]
	parity := len(hash) % 2
	parent := hash[:len(hash)-1]

	if parent != "" && strings.IndexByte(borderTable[dir][parity], last) >= 0 {
		parent = adjacent(parent, dir)
	}

	idx := strings.IndexByte(neighborTable[dir][parity], last)
	return parent + string(base32[idx])
}

// Neighbors returns hash and its eight surrounding cells. Near the poles some
// neighbors coincide; duplicates are removed and the order is stable.
func Neighbors(hash string) ([]string, error) {
	hash = strings.ToLower(hash)
	if err := validateHash(hash); err != nil {
		return nil, err
	}
	return neighbors(hash), nil
}

func neighbors(hash string) []string {
	n := adjacent(hash, North)
	s := adjacent(hash, South)
	cells := []string{
		hash,
		n, s,
		adjacent(hash, East), adjacent(hash, West),
		adjacent(n, East), adjacent(n, West),
		adjacent(s, East), adjacent(s, West),
	}

	seen := make(map[string]struct{}, len(cells))
	out := cells[:0]
	for _, c := range cells {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// ExpandNeighbors returns every cell reachable from hash in at most steps
// neighbor hops, sorted. steps <= 0 yields just hash. The result covers any
// disk of radius steps*cellSize around the origin cell and over-covers the
// corners; callers filter by exact distance afterwards.
func ExpandNeighbors(hash string, steps int) ([]string, error) {
	hash = strings.ToLower(hash)
	if err := validateHash(hash); err != nil {
		return nil, err
	}

	set := map[string]struct{}{hash: {}}
	frontier := []string{hash}
	for i := 0; i < steps && len(frontier) > 0; i++ {
		var next []string
		for _, h := range frontier {
			for _, n := range neighbors(h) {
				if _, ok := set[n]; ok {
					continue
				}
				set[n] = struct{}{}
				next = append(next, n)
			}
		}
		frontier = next
	}

	out := make([]string, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Strings(out)
	return out, nil
}

func validateHash(hash string) error {
	if hash == "" {
		return eris.Wrap(ErrInvalidHash, "empty hash")
	}
	for i := 0; i < len(hash); i++ {
		if base32Index[hash[i]] < 0 {
			return eris.Wrapf(ErrInvalidHash, "character %q at %d", hash[i], i)
		}
	}
	return nil
}

func validLatLng(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
