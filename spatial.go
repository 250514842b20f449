package zipbed

import (
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/golang/geo/s2"
)

// IndexKind selects the spatial index used to narrow geo-band candidates.
type IndexKind uint8

const (
	// IndexS2 buckets records by S2 cell (default).
	IndexS2 IndexKind = iota
	// IndexRTree stores records in an R-tree over longitude/latitude.
	IndexRTree
	// IndexNone scans the whole catalog for every geo query.
	IndexNone
)

func (k IndexKind) String() string {
	switch k {
	case IndexS2:
		return "s2"
	case IndexRTree:
		return "rtree"
	case IndexNone:
		return "none"
	}
	return fmt.Sprintf("IndexKind(%d)", uint8(k))
}

// ParseIndexKind parses the names returned by IndexKind.String.
func ParseIndexKind(s string) (IndexKind, error) {
	switch toLower(s) {
	case "s2", "":
		return IndexS2, nil
	case "rtree":
		return IndexRTree, nil
	case "none":
		return IndexNone, nil
	}
	return 0, fmt.Errorf("unknown spatial index %q", s)
}

// spatialIndex returns a superset of the catalog indices lying within km of a point.
// Callers still apply the exact distance check.
type spatialIndex interface {
	nearby(lat, lon, km float64) []int
}

// s2CellLevel is the granularity of the S2 cell index. Level 10 cells are
// roughly 10km across, matching the default geo radius.
const s2CellLevel = 10

// maxCellIndexRadiusKm bounds the radius served from the cell index; wider
// queries would cover thousands of level-10 cells, so they scan instead.
const maxCellIndexRadiusKm = 200

// radiusSlack widens index lookups so floating-point differences between the
// index geometry and the haversine check never drop a candidate.
const radiusSlack = 1.001

// validCoordinates reports whether a point is inside the ranges the indexes model.
// Records outside them are kept in a side list and always returned as candidates.
func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func buildSpatialIndex(kind IndexKind, c *Catalog) spatialIndex {
	switch kind {
	case IndexS2:
		return newCellIndex(c)
	case IndexRTree:
		return newTreeIndex(c)
	}
	return nil
}

// cellIndex is an S2 cell-based spatial index.
type cellIndex struct {
	cells    map[s2.CellID][]int
	outliers []int
	all      []int
}

func newCellIndex(c *Catalog) *cellIndex {
	idx := &cellIndex{cells: make(map[s2.CellID][]int)}
	for i := range c.records {
		lat, lon, ok := c.records[i].Coordinates()
		if !ok {
			continue
		}
		idx.all = append(idx.all, i)
		if !validCoordinates(lat, lon) {
			idx.outliers = append(idx.outliers, i)
			continue
		}
		cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(s2CellLevel)
		idx.cells[cell] = append(idx.cells[cell], i)
	}
	return idx
}

func (idx *cellIndex) nearby(lat, lon, km float64) []int {
	if !validCoordinates(lat, lon) || km > maxCellIndexRadiusKm {
		return idx.all
	}

	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	capRegion := s2.CapFromCenterAngle(center, kmToAngle(km*radiusSlack))
	coverer := &s2.RegionCoverer{
		MinLevel: s2CellLevel,
		MaxLevel: s2CellLevel,
		MaxCells: 64,
	}

	out := append([]int(nil), idx.outliers...)
	for _, cell := range coverer.Covering(capRegion) {
		switch level := cell.Level(); {
		case level == s2CellLevel:
			out = append(out, idx.cells[cell]...)
		case level > s2CellLevel:
			out = append(out, idx.cells[cell.Parent(s2CellLevel)]...)
		default:
			for c := cell.ChildBeginAtLevel(s2CellLevel); c != cell.ChildEndAtLevel(s2CellLevel); c = c.Next() {
				out = append(out, idx.cells[c]...)
			}
		}
	}
	return out
}

// treeIndex is an R-tree over (longitude, latitude) points.
type treeIndex struct {
	tree     *rtreego.Rtree
	outliers []int
}

// treeItem is a catalog entry stored in the R-tree.
type treeItem struct {
	rect  rtreego.Rect
	index int
}

func (t *treeItem) Bounds() rtreego.Rect {
	return t.rect
}

// pointTolerance is the side length of the degenerate rectangle stored per point.
const pointTolerance = 1e-9

func newTreeIndex(c *Catalog) *treeIndex {
	idx := &treeIndex{tree: rtreego.NewTree(2, 25, 50)}
	for i := range c.records {
		lat, lon, ok := c.records[i].Coordinates()
		if !ok {
			continue
		}
		if !validCoordinates(lat, lon) {
			idx.outliers = append(idx.outliers, i)
			continue
		}
		rect, err := rtreego.NewRect(rtreego.Point{lon, lat}, []float64{pointTolerance, pointTolerance})
		if err != nil {
			idx.outliers = append(idx.outliers, i)
			continue
		}
		idx.tree.Insert(&treeItem{rect: rect, index: i})
	}
	return idx
}

func (idx *treeIndex) nearby(lat, lon, km float64) []int {
	out := append([]int(nil), idx.outliers...)
	if !validCoordinates(lat, lon) {
		return idx.search(out, -180, -90, 180, 90)
	}

	angle := km * radiusSlack / earthRadiusKm
	dLat := angle * 180 / math.Pi
	minLat, maxLat := lat-dLat, lat+dLat

	// A box reaching a pole spans every longitude.
	if minLat <= -90 || maxLat >= 90 || angle >= math.Pi/2 {
		return idx.search(out, -180, math.Max(minLat, -90), 180, math.Min(maxLat, 90))
	}

	sinRatio := math.Sin(angle) / math.Cos(lat*math.Pi/180)
	if sinRatio >= 1 {
		return idx.search(out, -180, minLat, 180, maxLat)
	}
	dLon := math.Asin(sinRatio) * 180 / math.Pi
	minLon, maxLon := lon-dLon, lon+dLon

	switch {
	case minLon < -180:
		out = idx.search(out, minLon+360, minLat, 180, maxLat)
		return idx.search(out, -180, minLat, maxLon, maxLat)
	case maxLon > 180:
		out = idx.search(out, minLon, minLat, 180, maxLat)
		return idx.search(out, -180, minLat, maxLon-360, maxLat)
	}
	return idx.search(out, minLon, minLat, maxLon, maxLat)
}

// search appends the indices of all points inside the given box to out.
// The box is padded because rtreego does not count touching edges as intersecting.
func (idx *treeIndex) search(out []int, minLon, minLat, maxLon, maxLat float64) []int {
	minLon, minLat = minLon-pointTolerance, minLat-pointTolerance
	w := maxLon - minLon + 2*pointTolerance
	h := maxLat - minLat + 2*pointTolerance
	rect, err := rtreego.NewRect(rtreego.Point{minLon, minLat}, []float64{w, h})
	if err != nil {
		return out
	}
	for _, s := range idx.tree.SearchIntersect(rect) {
		out = append(out, s.(*treeItem).index)
	}
	return out
}
