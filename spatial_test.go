package zipbed

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomCatalog scatters records around a few centres, including the poles,
// the antimeridian and some unusable coordinates.
func randomCatalog(rng *rand.Rand, n int) []Record {
	centres := [][2]float64{
		{43.96, -69.78}, {0, 179.99}, {0, -179.99}, {89.95, 0}, {-89.95, 45}, {42.06, -72.61},
	}
	records := make([]Record, 0, n+3)
	for i := 0; i < n; i++ {
		c := centres[rng.Intn(len(centres))]
		lat := c[0] + (rng.Float64()-0.5)*0.5
		lon := c[1] + (rng.Float64()-0.5)*0.5
		records = append(records, Record{
			Zip:       strconv.Itoa(10000 + i),
			Latitude:  strconv.FormatFloat(lat, 'f', 5, 64),
			Longitude: strconv.FormatFloat(lon, 'f', 5, 64),
		})
	}
	records = append(records,
		Record{Zip: "no-coords"},
		Record{Zip: "bad-coords", Latitude: "x", Longitude: "1"},
		Record{Zip: "out-of-range", Latitude: "43.96", Longitude: "290.22"},
	)
	return records
}

func bruteForceNearby(records []Record, lat, lon, km float64) []int {
	var out []int
	for i := range records {
		rlat, rlon, ok := records[i].Coordinates()
		if ok && DistanceKm(lat, lon, rlat, rlon) <= km {
			out = append(out, i)
		}
	}
	return out
}

func TestSpatialIndexCandidatesCoverExactMatches(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	records := randomCatalog(rng, 2000)
	c := NewCatalog(records)

	indexes := map[string]spatialIndex{
		"s2":    newCellIndex(c),
		"rtree": newTreeIndex(c),
	}

	queries := [][2]float64{
		{43.96, -69.78}, {0, 180}, {0, -180}, {0, 179.995}, {90, 0}, {-90, 0}, {89.99, 120}, {42.06, -72.61},
	}
	for i := 0; i < 50; i++ {
		r := records[rng.Intn(len(records)-3)]
		lat, lon, _ := r.Coordinates()
		queries = append(queries, [2]float64{lat, lon})
	}

	for name, idx := range indexes {
		for _, km := range []float64{1, 10, 25} {
			for _, q := range queries {
				candidates := make(map[int]bool)
				for _, i := range idx.nearby(q[0], q[1], km) {
					candidates[i] = true
				}
				for _, i := range bruteForceNearby(records, q[0], q[1], km) {
					assert.True(t, candidates[i], "%s index missed record %d for %v within %vkm", name, i, q, km)
				}
			}
		}
	}
}

func TestSpatialIndexesMatchFullScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	records := randomCatalog(rng, 1000)
	c := NewCatalog(records)

	engines := map[IndexKind]*Engine{
		IndexS2:    NewEngine(c, WithSpatialIndex(IndexS2)),
		IndexRTree: NewEngine(c, WithSpatialIndex(IndexRTree)),
		IndexNone:  NewEngine(c, WithSpatialIndex(IndexNone)),
	}

	for i := 0; i < 100; i++ {
		lat := (rng.Float64() - 0.5) * 180
		lon := (rng.Float64() - 0.5) * 360
		if i%2 == 0 {
			lat, lon, _ = records[rng.Intn(len(records)-3)].Coordinates()
		}

		want, err := engines[IndexNone].SearchByLocation(lat, lon)
		require.NoError(t, err)
		for _, kind := range []IndexKind{IndexS2, IndexRTree} {
			got, err := engines[kind].SearchByLocation(lat, lon)
			require.NoError(t, err)
			assert.Equal(t, zips(want), zips(got), "%s index at (%v, %v)", kind, lat, lon)
		}
	}
}

func TestSpatialIndexWideRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	records := randomCatalog(rng, 300)
	c := NewCatalog(records)

	full := NewEngine(c, WithSpatialIndex(IndexNone), WithGeoRadius(5000))
	for _, kind := range []IndexKind{IndexS2, IndexRTree} {
		e := NewEngine(c, WithSpatialIndex(kind), WithGeoRadius(5000))
		want, err := full.SearchByLocation(43.96, -69.78)
		require.NoError(t, err)
		got, err := e.SearchByLocation(43.96, -69.78)
		require.NoError(t, err)
		assert.Equal(t, zips(want), zips(got), "%s index", kind)
	}
}

func TestParseIndexKind(t *testing.T) {
	for _, kind := range []IndexKind{IndexS2, IndexRTree, IndexNone} {
		got, err := ParseIndexKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, got)
	}
	got, err := ParseIndexKind("RTree")
	require.NoError(t, err)
	assert.Equal(t, IndexRTree, got)

	_, err = ParseIndexKind("quadtree")
	assert.Error(t, err)
}
