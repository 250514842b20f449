package zipbed

import "strings"

// Field identifies a filterable record field.
type Field uint8

const (
	FieldZip Field = iota
	FieldType
	FieldPrimaryCity
	FieldState
	FieldCounty
	FieldTimezone
	FieldAreaCodes
	FieldLatitude
	FieldLongitude
	FieldCountry
	FieldEstimatedPopulation

	numFields
)

// fieldNames holds the filter key of every field. Sized by numFields, so adding a
// field without naming it leaves an empty key that TestFieldTables catches.
var fieldNames = [numFields]string{
	FieldZip:                 "zip",
	FieldType:                "type",
	FieldPrimaryCity:         "primary_city",
	FieldState:               "state",
	FieldCounty:              "county",
	FieldTimezone:            "timezone",
	FieldAreaCodes:           "area_codes",
	FieldLatitude:            "latitude",
	FieldLongitude:           "longitude",
	FieldCountry:             "country",
	FieldEstimatedPopulation: "estimated_population",
}

// String returns the filter key for f.
func (f Field) String() string {
	if f < numFields {
		return fieldNames[f]
	}
	return "unknown"
}

// fieldByName maps lowercase filter keys to fields.
var fieldByName = func() map[string]Field {
	m := make(map[string]Field, numFields)
	for f := Field(0); f < numFields; f++ {
		m[fieldNames[f]] = f
	}
	return m
}()

// ParseField resolves a filter key, ignoring case.
func ParseField(key string) (Field, bool) {
	f, ok := fieldByName[toLower(key)]
	return f, ok
}

// Strategy is the predicate used to compare a record field with a query value.
type Strategy uint8

const (
	strategyNone Strategy = iota
	// StrategySubstring matches when the record value contains the query value, ignoring case.
	StrategySubstring
	// StrategyExact matches when the record value equals the query value, ignoring case.
	StrategyExact
	// StrategyNumericBand matches when the record value is within the population tolerance.
	StrategyNumericBand
	// StrategyGeoBand matches when the record lies within the geo radius. Latitude and
	// longitude are always evaluated together.
	StrategyGeoBand
)

func (s Strategy) String() string {
	switch s {
	case StrategySubstring:
		return "substring"
	case StrategyExact:
		return "exact"
	case StrategyNumericBand:
		return "numeric-band"
	case StrategyGeoBand:
		return "geo-band"
	}
	return "unknown"
}

// strategies is the field matcher table. A field left out of it keeps
// strategyNone, which matches nothing and fails TestFieldTables.
var strategies = [numFields]Strategy{
	FieldZip:                 StrategySubstring,
	FieldType:                StrategyExact,
	FieldPrimaryCity:         StrategySubstring,
	FieldState:               StrategyExact,
	FieldCounty:              StrategySubstring,
	FieldTimezone:            StrategySubstring,
	FieldAreaCodes:           StrategySubstring,
	FieldLatitude:            StrategyGeoBand,
	FieldLongitude:           StrategyGeoBand,
	FieldCountry:             StrategyExact,
	FieldEstimatedPopulation: StrategyNumericBand,
}

// StrategyOf returns the matching strategy used for f.
func StrategyOf(f Field) Strategy {
	return strategies[f]
}

// toLower converts a string to lowercase. Unicode-aware; city names in the
// dataset are not restricted to ASCII.
func toLower(s string) string {
	return strings.ToLower(s)
}
