package zipbed

import (
	"io"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

const (
	// DefaultGeoRadiusKm is the geo band: records within this distance of the
	// query point match.
	DefaultGeoRadiusKm = 10
	// DefaultPopulationTolerance is the numeric band: records whose population
	// is within this amount of the query value match.
	DefaultPopulationTolerance = 500
)

// Config contains configuration options for an Engine.
type Config struct {
	Logger              *slog.Logger
	SpatialIndex        IndexKind
	GeoRadiusKm         float64
	PopulationTolerance float64
}

// Option is a functional option for configuring an Engine.
type Option func(*Config)

// WithLogger sets the structured logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithSpatialIndex selects the index used to narrow geo queries.
func WithSpatialIndex(kind IndexKind) Option {
	return func(c *Config) {
		c.SpatialIndex = kind
	}
}

// WithGeoRadius sets the geo band radius in kilometres. Non-positive values are ignored.
func WithGeoRadius(km float64) Option {
	return func(c *Config) {
		if km > 0 {
			c.GeoRadiusKm = km
		}
	}
}

// WithPopulationTolerance sets the numeric band half-width. Negative values are ignored.
func WithPopulationTolerance(n float64) Option {
	return func(c *Config) {
		if n >= 0 {
			c.PopulationTolerance = n
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		SpatialIndex:        IndexS2,
		GeoRadiusKm:         DefaultGeoRadiusKm,
		PopulationTolerance: DefaultPopulationTolerance,
	}
}

// Engine answers filter queries over a Catalog.
// It never modifies the catalog and is safe for concurrent use.
type Engine struct {
	catalog *Catalog
	config  *Config
	logger  *slog.Logger
	spatial spatialIndex
	cities  []string // distinct primary city names, sorted
}

// NewEngine creates an Engine over c and builds its spatial index.
//
//	e := zipbed.NewEngine(zipbed.NewCatalog(records), zipbed.WithSpatialIndex(zipbed.IndexRTree))
//	recs, err := e.Search(zipbed.Filters{"primary_city": "Amherst", "state": "MA"})
func NewEngine(c *Catalog, opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if c == nil {
		c = NewCatalog(nil)
	}

	e := &Engine{
		catalog: c,
		config:  cfg,
		logger:  cfg.Logger,
		spatial: buildSpatialIndex(cfg.SpatialIndex, c),
	}
	e.cities = distinctCities(c)

	e.logger.Debug("engine ready",
		"records", c.Len(),
		"spatial_index", cfg.SpatialIndex.String(),
		"geo_radius_km", cfg.GeoRadiusKm,
		"population_tolerance", cfg.PopulationTolerance,
	)
	return e
}

// Catalog returns the catalog the engine queries.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Filters maps filter keys to query values. Keys are field names, matched
// case-insensitively; values are the text forms of the query.
type Filters map[string]string

// Search returns every record that satisfies all filters, in catalog order.
// Each catalog entry appears at most once.
//
// When primary_city is filtered, records listing the city among their
// acceptable cities are added, and if a record's primary city equals the query
// exactly, the cities it declares unacceptable are removed from the result.
func (e *Engine) Search(filters Filters) ([]Record, error) {
	q, err := parseQuery(filters)
	if err != nil {
		e.logger.Warn("query rejected", "error", err)
		return nil, err
	}

	matched := e.scan(q)
	for _, city := range q.cities {
		matched = e.resolveAliases(matched, city)
	}

	result := e.collect(matched)
	e.logger.Debug("search completed",
		"filters", len(filters),
		"results", len(result),
	)
	return result, nil
}

// SearchByZipCode returns records whose zip contains zip.
func (e *Engine) SearchByZipCode(zip string) ([]Record, error) {
	if zip == "" {
		return nil, &QueryError{Kind: EmptyInput, Key: FieldZip.String()}
	}
	return e.Search(Filters{FieldZip.String(): zip})
}

// SearchByCityName returns records matching name as a primary city, including aliases.
func (e *Engine) SearchByCityName(name string) ([]Record, error) {
	if name == "" {
		return nil, &QueryError{Kind: EmptyInput, Key: FieldPrimaryCity.String()}
	}
	return e.Search(Filters{FieldPrimaryCity.String(): name})
}

// SearchByEstimatedPopulation returns records whose population is within the
// population tolerance of value. Zero and NaN count as no input.
func (e *Engine) SearchByEstimatedPopulation(value float64) ([]Record, error) {
	if value == 0 || math.IsNaN(value) {
		return nil, &QueryError{Kind: EmptyInput, Key: FieldEstimatedPopulation.String()}
	}
	return e.Search(Filters{FieldEstimatedPopulation.String(): formatFloat(value)})
}

// SearchByLocation returns records within the geo radius of (lat, lon).
// A NaN coordinate is treated as not supplied.
func (e *Engine) SearchByLocation(lat, lon float64) ([]Record, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		qe := &QueryError{Kind: MissingCoordinatePair, wrapper: true}
		if math.IsNaN(lat) {
			qe.Key = FieldLatitude.String()
		} else {
			qe.Key = FieldLongitude.String()
		}
		return nil, qe
	}
	return e.Search(Filters{
		FieldLatitude.String():  formatFloat(lat),
		FieldLongitude.String(): formatFloat(lon),
	})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// scan runs the field matcher table over the catalog, or over the spatial
// index candidates when the query has a geo constraint.
func (e *Engine) scan(q *query) []int {
	records := e.catalog.records
	var out []int

	if q.geo != nil && e.spatial != nil {
		candidates := roaring.New()
		for _, i := range e.spatial.nearby(q.geo.lat, q.geo.lon, e.config.GeoRadiusKm) {
			candidates.Add(uint32(i))
		}
		it := candidates.Iterator()
		for it.HasNext() {
			i := int(it.Next())
			if e.matches(&records[i], q) {
				out = append(out, i)
			}
		}
		return out
	}

	for i := range records {
		if e.matches(&records[i], q) {
			out = append(out, i)
		}
	}
	return out
}

// collect deduplicates matched indices and returns the records in catalog order.
func (e *Engine) collect(matched []int) []Record {
	set := roaring.New()
	for _, i := range matched {
		set.Add(uint32(i))
	}
	out := make([]Record, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		out = append(out, e.catalog.records[it.Next()])
	}
	return out
}

// maxFuzzyDistance caps SuggestCities' edit distance.
const maxFuzzyDistance = 3

// maxSuggestInputLen limits the input compared by SuggestCities.
const maxSuggestInputLen = 256

// SuggestCities returns distinct primary city names within maxDist edits of
// name, closest first. maxDist is capped at 3; zero only finds case variants.
func (e *Engine) SuggestCities(name string, maxDist int) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if runes := []rune(name); len(runes) > maxSuggestInputLen {
		name = string(runes[:maxSuggestInputLen])
	}
	if maxDist > maxFuzzyDistance {
		maxDist = maxFuzzyDistance
	}
	if maxDist < 0 {
		maxDist = 0
	}

	type suggestion struct {
		city string
		dist int
	}
	var found []suggestion
	for _, city := range e.cities {
		if d, ok := cityDistance(name, city, maxDist); ok {
			found = append(found, suggestion{city: city, dist: d})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].dist != found[j].dist {
			return found[i].dist < found[j].dist
		}
		return found[i].city < found[j].city
	})

	out := make([]string, len(found))
	for i, s := range found {
		out[i] = s.city
	}
	return out
}

func distinctCities(c *Catalog) []string {
	seen := make(map[string]bool)
	var cities []string
	for i := range c.records {
		city := c.records[i].PrimaryCity
		if city == "" || seen[city] {
			continue
		}
		seen[city] = true
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}
