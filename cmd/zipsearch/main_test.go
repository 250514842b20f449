package main

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/andreiashu/zipbed"
)

func testEngine(t *testing.T) *zipbed.Engine {
	t.Helper()
	records, err := zipbed.LoadFile("../../testdata/zipcodes.json")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	return zipbed.NewEngine(zipbed.NewCatalog(records))
}

func TestFilterFlags(t *testing.T) {
	f := filterFlags{}
	if err := f.Set("state=MA"); err != nil {
		t.Fatal(err)
	}
	if err := f.Set("county=Hampden County"); err != nil {
		t.Fatal(err)
	}
	want := filterFlags{"state": "MA", "county": "Hampden County"}
	if !reflect.DeepEqual(f, want) {
		t.Errorf("filters = %v, want %v", f, want)
	}

	for _, bad := range []string{"state", "=MA", ""} {
		if err := f.Set(bad); err == nil {
			t.Errorf("Set(%q) succeeded, want error", bad)
		}
	}
}

func TestRunQuery(t *testing.T) {
	e := testEngine(t)

	tests := []struct {
		name string
		opts options
		want []string
	}{
		{
			name: "zip",
			opts: options{zip: "01001"},
			want: []string{"01001"},
		},
		{
			name: "city with aliases",
			opts: options{city: "Amherst"},
			want: []string{"01002", "01003", "01004", "03031", "14226"},
		},
		{
			name: "city and filter",
			opts: options{city: "Amherst", filters: filterFlags{"state": "NH"}},
			want: []string{"01003", "03031", "14226"},
		},
		{
			name: "population",
			opts: options{population: 10000},
			want: []string{"01007", "04530"},
		},
		{
			name: "location",
			opts: options{lat: "43.96", lon: "-69.78"},
			want: []string{"04530", "04579"},
		},
		{
			name: "zip and state",
			opts: options{zip: "0", filters: filterFlags{"state": "ME"}},
			want: []string{"04530", "04579", "04548", "04548", "04011"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runQuery(e, tt.opts)
			if err != nil {
				t.Fatalf("runQuery() error = %v", err)
			}
			zips := make([]string, len(got))
			for i, r := range got {
				zips[i] = r.Zip
			}
			if !reflect.DeepEqual(zips, tt.want) {
				t.Errorf("runQuery() = %v, want %v", zips, tt.want)
			}
		})
	}
}

func TestRunQueryErrors(t *testing.T) {
	e := testEngine(t)

	if _, err := runQuery(e, options{}); err == nil {
		t.Error("runQuery() with no criteria succeeded")
	}

	_, err := runQuery(e, options{lat: "43.96"})
	if !errors.Is(err, zipbed.ErrMissingCoordinatePair) {
		t.Errorf("runQuery(lat only) error = %v, want ErrMissingCoordinatePair", err)
	}

	_, err = runQuery(e, options{filters: filterFlags{"city": "Amherst"}})
	if !errors.Is(err, zipbed.ErrInvalidFilterKey) {
		t.Errorf("runQuery(bad filter) error = %v, want ErrInvalidFilterKey", err)
	}
}

func TestParseCoordinate(t *testing.T) {
	if got := parseCoordinate(" 43.96 "); got != 43.96 {
		t.Errorf("parseCoordinate() = %v, want 43.96", got)
	}
	for _, s := range []string{"", "north"} {
		if got := parseCoordinate(s); !math.IsNaN(got) {
			t.Errorf("parseCoordinate(%q) = %v, want NaN", s, got)
		}
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("debug", "json"); err != nil {
		t.Errorf("newLogger(debug, json) error = %v", err)
	}
	if _, err := newLogger("loud", "text"); err == nil {
		t.Error("newLogger accepted an invalid level")
	}
	if _, err := newLogger("info", "xml"); err == nil {
		t.Error("newLogger accepted an invalid format")
	}
}
