package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
)

// Level is the depth of an administrative region in the hierarchy.
// Province is the coarsest level, District the finest.
type Level int

const (
	Province Level = iota
	City
	District
)

// Levels lists every level from coarsest to finest.
var Levels = []Level{Province, City, District}

func (l Level) String() string {
	switch l {
	case Province:
		return "province"
	case City:
		return "city"
	case District:
		return "district"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	return l >= Province && l <= District
}

// ParseLevel parses a level name. An empty string selects District.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "province":
		return Province, nil
	case "city":
		return City, nil
	case "district", "":
		return District, nil
	default:
		return District, eris.Errorf("unknown level %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, eris.Errorf("unknown level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the location is finite and inside the WGS84 range.
func (l Location) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lon) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lon, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	BottomLeft Location `json:"bottomLeft"`
	TopRight   Location `json:"topRight"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.BottomLeft.Lat && lat <= b.TopRight.Lat &&
		lon >= b.BottomLeft.Lon && lon <= b.TopRight.Lon
}

// Width is the longitudinal span in degrees.
func (b BoundingBox) Width() float64 { return b.TopRight.Lon - b.BottomLeft.Lon }

// Height is the latitudinal span in degrees.
func (b BoundingBox) Height() float64 { return b.TopRight.Lat - b.BottomLeft.Lat }

// Union returns the smallest box covering both b and o.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		BottomLeft: Location{Lat: math.Min(b.BottomLeft.Lat, o.BottomLeft.Lat), Lon: math.Min(b.BottomLeft.Lon, o.BottomLeft.Lon)},
		TopRight:   Location{Lat: math.Max(b.TopRight.Lat, o.TopRight.Lat), Lon: math.Max(b.TopRight.Lon, o.TopRight.Lon)},
	}
}

// RegionSummary is one resolved step of a GeoInfo chain.
type RegionSummary struct {
	Level Level  `json:"level"`
	Code  string `json:"code"`
	Name  string `json:"name"`
}

// AmbiguityWarning records a level where more than one region contained the
// queried point and the smallest one was picked.
type AmbiguityWarning struct {
	Level      Level    `json:"level"`
	Chosen     string   `json:"chosen"`
	Candidates []string `json:"candidates"`
}

// GeoInfo is the result of a reverse lookup: the chain of enclosing regions
// ordered from province down to the deepest level reached.
type GeoInfo struct {
	Regions  []RegionSummary    `json:"regions"`
	Warnings []AmbiguityWarning `json:"warnings,omitempty"`
}

// Empty reports whether no region encloses the point.
func (g *GeoInfo) Empty() bool {
	return g == nil || len(g.Regions) == 0
}

// Deepest returns the finest resolved region.
func (g *GeoInfo) Deepest() (RegionSummary, bool) {
	if g.Empty() {
		return RegionSummary{}, false
	}
	return g.Regions[len(g.Regions)-1], true
}

// At returns the region resolved at the given level, if any.
func (g *GeoInfo) At(level Level) (RegionSummary, bool) {
	if g == nil {
		return RegionSummary{}, false
	}
	for _, r := range g.Regions {
		if r.Level == level {
			return r, true
		}
	}
	return RegionSummary{}, false
}

// Adcode is the code of the deepest resolved region.
func (g *GeoInfo) Adcode() string {
	r, _ := g.Deepest()
	return r.Code
}

// FormatAddress joins the resolved names from coarsest to finest.
func (g *GeoInfo) FormatAddress() string {
	if g.Empty() {
		return ""
	}
	var sb strings.Builder
	for _, r := range g.Regions {
		sb.WriteString(r.Name)
	}
	return sb.String()
}
