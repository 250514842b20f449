package zipbed

import (
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// constraint is one non-geo filter, with the query value pre-processed for its strategy.
type constraint struct {
	field  Field
	value  string  // lowercased query text
	number float64 // parsed query value, NaN if not numeric
}

// geoPoint is the query coordinate of a geo-band filter. Either value may be
// NaN when the query text was not numeric, in which case nothing matches.
type geoPoint struct {
	lat, lon float64
}

type query struct {
	constraints []constraint
	geo         *geoPoint
	cities      []string // primary_city values, as given
}

// parseQuery validates filters and converts them to a query.
// Keys are processed in sorted order so errors are deterministic.
func parseQuery(filters Filters) (*query, error) {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := &query{}
	var latText, lonText string
	var latKey, lonKey string

	for _, key := range keys {
		value := filters[key]
		f, ok := ParseField(key)
		if !ok {
			return nil, &QueryError{Kind: InvalidFilterKey, Key: key, Value: value}
		}

		switch f {
		case FieldLatitude:
			if strings.TrimSpace(value) != "" {
				latText, latKey = value, key
			}
			continue
		case FieldLongitude:
			if strings.TrimSpace(value) != "" {
				lonText, lonKey = value, key
			}
			continue
		case FieldPrimaryCity:
			q.cities = append(q.cities, value)
		}

		c := constraint{field: f, value: toLower(value), number: math.NaN()}
		if strategies[f] == StrategyNumericBand {
			if n, err := parseNumber(value); err == nil {
				c.number = n
			}
		}
		q.constraints = append(q.constraints, c)
	}

	switch {
	case latKey != "" && lonKey == "":
		return nil, &QueryError{Kind: MissingCoordinatePair, Key: latKey, Value: latText}
	case lonKey != "" && latKey == "":
		return nil, &QueryError{Kind: MissingCoordinatePair, Key: lonKey, Value: lonText}
	case latKey != "":
		q.geo = &geoPoint{lat: math.NaN(), lon: math.NaN()}
		if lat, err := parseNumber(latText); err == nil {
			q.geo.lat = lat
		}
		if lon, err := parseNumber(lonText); err == nil {
			q.geo.lon = lon
		}
	}
	return q, nil
}

// matches reports whether r satisfies every constraint of q.
func (e *Engine) matches(r *Record, q *query) bool {
	for _, c := range q.constraints {
		if !e.matchField(r, c) {
			return false
		}
	}
	if q.geo != nil && !e.withinRadius(r, q.geo) {
		return false
	}
	return true
}

// matchField applies the strategy of c.field. Absent record values never match.
func (e *Engine) matchField(r *Record, c constraint) bool {
	switch strategies[c.field] {
	case StrategySubstring:
		v := r.text(c.field)
		if v == "" {
			return false
		}
		return strings.Contains(toLower(v), c.value)
	case StrategyExact:
		v := r.text(c.field)
		if v == "" {
			return false
		}
		return toLower(v) == c.value
	case StrategyNumericBand:
		pop, ok := r.Population()
		if !ok {
			return false
		}
		return math.Abs(pop-c.number) <= e.config.PopulationTolerance
	case StrategyGeoBand:
		// Latitude and longitude never become single-field constraints.
		return false
	}
	return false
}

// withinRadius is the geo band: r's coordinates parse and lie within the
// configured radius of p.
func (e *Engine) withinRadius(r *Record, p *geoPoint) bool {
	lat, lon, ok := r.Coordinates()
	if !ok {
		return false
	}
	return DistanceKm(p.lat, p.lon, lat, lon) <= e.config.GeoRadiusKm
}

// cityDistance compares a query with a city name. With maxDist 0 it is a
// case-insensitive equality check; otherwise the Levenshtein distance must not
// exceed maxDist.
func cityDistance(query, city string, maxDist int) (int, bool) {
	if maxDist == 0 {
		return 0, strings.EqualFold(query, city)
	}
	dist := levenshtein.ComputeDistance(toLower(query), toLower(city))
	return dist, dist <= maxDist
}
