package zipbed

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is one postal code entry of the catalog.
// Coordinates and population are kept as text, the way the dataset ships them,
// and parsed lazily when a query needs them.
type Record struct {
	Zip                 string   `json:"zip"`
	Type                string   `json:"type"`
	PrimaryCity         string   `json:"primary_city"`
	AcceptableCities    CityList `json:"acceptable_cities"`
	UnacceptableCities  CityList `json:"unacceptable_cities"`
	State               string   `json:"state"`
	County              string   `json:"county"`
	Timezone            string   `json:"timezone"`
	AreaCodes           string   `json:"area_codes"`
	Latitude            string   `json:"latitude"`
	Longitude           string   `json:"longitude"`
	Country             string   `json:"country"`
	EstimatedPopulation string   `json:"estimated_population"`
}

// text returns the raw string value of a string-valued field.
// Latitude, longitude and population are returned as stored.
func (r *Record) text(f Field) string {
	switch f {
	case FieldZip:
		return r.Zip
	case FieldType:
		return r.Type
	case FieldPrimaryCity:
		return r.PrimaryCity
	case FieldState:
		return r.State
	case FieldCounty:
		return r.County
	case FieldTimezone:
		return r.Timezone
	case FieldAreaCodes:
		return r.AreaCodes
	case FieldLatitude:
		return r.Latitude
	case FieldLongitude:
		return r.Longitude
	case FieldCountry:
		return r.Country
	case FieldEstimatedPopulation:
		return r.EstimatedPopulation
	}
	return ""
}

// Coordinates parses the record's latitude and longitude.
// ok is false when either value is absent or not a number.
func (r *Record) Coordinates() (lat, lon float64, ok bool) {
	lat, errLat := parseNumber(r.Latitude)
	lon, errLng := parseNumber(r.Longitude)
	if errLat != nil || errLng != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// Population parses the record's estimated population.
func (r *Record) Population() (float64, bool) {
	pop, err := parseNumber(r.EstimatedPopulation)
	if err != nil {
		return 0, false
	}
	return pop, true
}

// parseNumber parses a decimal text value. Surrounding whitespace is ignored;
// an empty value is an error rather than zero.
func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// CityList is an ordered list of city names. In JSON and CSV it travels as
// comma-joined text, or null when there are no names.
type CityList []string

// ParseCityList splits comma-joined text into trimmed names, dropping empty ones.
func ParseCityList(s string) CityList {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out CityList
	for _, raw := range strings.Split(s, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}

// String returns the comma-joined form.
func (l CityList) String() string {
	return strings.Join(l, ", ")
}

// Contains reports whether name is in the list, ignoring case.
func (l CityList) Contains(name string) bool {
	for _, c := range l {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the list as comma-joined text, or null when empty.
func (l CityList) MarshalJSON() ([]byte, error) {
	if len(l) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes comma-joined text; null gives an empty list.
func (l *CityList) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*l = nil
		return nil
	}
	*l = ParseCityList(*s)
	return nil
}

// Catalog is the immutable, ordered set of records an Engine queries.
// A record's position in the catalog is its identity: two records with equal
// field values are still distinct entries.
type Catalog struct {
	records []Record
}

// NewCatalog copies records into a new catalog.
func NewCatalog(records []Record) *Catalog {
	c := &Catalog{records: make([]Record, len(records))}
	copy(c.records, records)
	return c
}

// Len returns the number of records.
func (c *Catalog) Len() int { return len(c.records) }

// At returns the record at index i.
func (c *Catalog) At(i int) Record { return c.records[i] }

// Records returns a copy of all records in catalog order.
func (c *Catalog) Records() []Record {
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}
