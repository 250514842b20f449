package zipbed

import (
	"testing"
)

// TestFieldTables checks that every field has a key and a matching strategy.
func TestFieldTables(t *testing.T) {
	seen := make(map[string]bool)
	for f := Field(0); f < numFields; f++ {
		name := fieldNames[f]
		if name == "" {
			t.Errorf("field %d has no name", f)
		}
		if seen[name] {
			t.Errorf("field name %q used twice", name)
		}
		seen[name] = true
		if strategies[f] == strategyNone {
			t.Errorf("field %s has no strategy", name)
		}
	}
}

func TestFieldStrategies(t *testing.T) {
	tests := []struct {
		key  string
		want Strategy
	}{
		{"estimated_population", StrategyNumericBand},
		{"latitude", StrategyGeoBand},
		{"longitude", StrategyGeoBand},
		{"type", StrategyExact},
		{"state", StrategyExact},
		{"country", StrategyExact},
		{"zip", StrategySubstring},
		{"primary_city", StrategySubstring},
		{"county", StrategySubstring},
		{"timezone", StrategySubstring},
		{"area_codes", StrategySubstring},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			f, ok := ParseField(tt.key)
			if !ok {
				t.Fatalf("ParseField(%q) not found", tt.key)
			}
			if got := StrategyOf(f); got != tt.want {
				t.Errorf("StrategyOf(%s) = %s, want %s", f, got, tt.want)
			}
			if f.String() != tt.key {
				t.Errorf("Field.String() = %q, want %q", f.String(), tt.key)
			}
		})
	}
}

func TestParseField(t *testing.T) {
	tests := []struct {
		key    string
		want   Field
		wantOK bool
	}{
		{"zip", FieldZip, true},
		{"ZIP", FieldZip, true},
		{"Primary_City", FieldPrimaryCity, true},
		{"ESTIMATED_POPULATION", FieldEstimatedPopulation, true},
		{"city", 0, false},
		{"acceptable_cities", 0, false},
		{"", 0, false},
		{" zip", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := ParseField(tt.key)
			if ok != tt.wantOK {
				t.Fatalf("ParseField(%q) ok = %v, want %v", tt.key, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseField(%q) = %s, want %s", tt.key, got, tt.want)
			}
		})
	}
}
