// Package geo resolves free-text place names to coordinates and measures
// distances between them. Resolution is a fixed lexical table, not a
// geocoding service: anything the table doesn't know is simply
// unresolvable, which the correlators treat as a scoped skip.
package geo

import (
	"math"
	"sort"
	"strings"
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lon float64
}

// earthRadiusKM is the mean Earth radius.
const earthRadiusKM = 6371.0

// DistanceKM returns the haversine great-circle distance between two
// points in kilometers.
func DistanceKM(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}

// Gazetteer maps normalized place names to coordinates.
type Gazetteer struct {
	places map[string]Point
	// names is the sorted key list; Extract scans it in order so
	// extracted mentions come out in a stable sequence.
	names []string
}

// defaultPlaces covers place names and common variants seen in monitored
// channels. External deployments load their own table via NewGazetteer.
var defaultPlaces = map[string]Point{
	// Capitals and major cities
	"kyiv": {50.4501, 30.5234}, "kiev": {50.4501, 30.5234},
	"kharkiv": {49.9935, 36.2304}, "kharkov": {49.9935, 36.2304},
	"odesa": {46.4825, 30.7233}, "odessa": {46.4825, 30.7233},
	"mariupol":     {47.0971, 37.5434},
	"zaporizhzhia": {47.8388, 35.1396},
	"kherson":      {46.6354, 32.6169},
	"donetsk":      {48.0159, 37.8028},
	"luhansk":      {48.5740, 39.3078},
	"moscow":       {55.7558, 37.6173},
	"minsk":        {53.9006, 27.5590},
	"warsaw":       {52.2297, 21.0122},
	"tbilisi":      {41.7151, 44.8271},
	"yerevan":      {40.1792, 44.4991},
	"baku":         {40.4093, 49.8671},
	"istanbul":     {41.0082, 28.9784},
	"ankara":       {39.9334, 32.8597},
	"damascus":     {33.5138, 36.2765},
	"aleppo":       {36.2021, 37.1343},
	"beirut":       {33.8938, 35.5018},
	"baghdad":      {33.3152, 44.3661},
	"tehran":       {35.6892, 51.3890},
	"kabul":        {34.5553, 69.2075},
	"gaza":         {31.5017, 34.4668},
	"jerusalem":    {31.7683, 35.2137},
	"tel aviv":     {32.0853, 34.7818},
	"cairo":        {30.0444, 31.2357},
	"tripoli":      {32.8872, 13.1913},
	"khartoum":     {15.5007, 32.5599},
	"london":       {51.5074, -0.1278},
	"paris":        {48.8566, 2.3522},
	"berlin":       {52.5200, 13.4050},
	"brussels":     {50.8503, 4.3517},
	"washington":   {38.9072, -77.0369},
	"new york":     {40.7128, -74.0060},
	"beijing":      {39.9042, 116.4074},
	"taipei":       {25.0330, 121.5654},
	"seoul":        {37.5665, 126.9780},
	"pyongyang":    {39.0392, 125.7625},
}

// NewGazetteer builds a gazetteer from a place table. Pass nil to use the
// built-in table.
func NewGazetteer(places map[string]Point) *Gazetteer {
	if places == nil {
		places = defaultPlaces
	}
	names := make([]string, 0, len(places))
	for name := range places {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Gazetteer{places: places, names: names}
}

// Resolve looks up a single normalized place name.
func (g *Gazetteer) Resolve(name string) (Point, bool) {
	p, ok := g.places[normalize(name)]
	return p, ok
}

// PlaceMention is one resolved place found in free text.
type PlaceMention struct {
	Name  string
	Point Point
}

// Extract scans free text for known place names and returns each distinct
// resolved mention. Matching is case-insensitive on word boundaries;
// multi-word names are checked against the raw lowered text.
func (g *Gazetteer) Extract(text string) []PlaceMention {
	lower := strings.ToLower(text)
	var mentions []PlaceMention

	for _, name := range g.names {
		if containsWord(lower, name) {
			mentions = append(mentions, PlaceMention{Name: name, Point: g.places[name]})
		}
	}

	return mentions
}

// containsWord reports whether name occurs in text on word boundaries.
func containsWord(text, name string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], name)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(name)

		startOK := start == 0 || !isWordChar(text[start-1])
		endOK := end == len(text) || !isWordChar(text[end])
		if startOK && endOK {
			return true
		}
		idx = start + 1
		if idx >= len(text) {
			return false
		}
	}
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
