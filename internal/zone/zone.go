// Package zone groups stops into geographic zones with a hierarchical,
// zoom-dependent clustering over the Web Mercator plane.
package zone

import (
	"fmt"
	"sort"

	"github.com/golang/geo/s2"

	"dispacio/internal/geo"
	"dispacio/internal/model"
)

// UnassignedLabel is the reserved label for stops that have no usable
// coordinates.
const UnassignedLabel = "Unassigned Zone"

// bboxPaddingDeg pads the stop bounding box on every side.
const bboxPaddingDeg = 0.01

type Options struct {
	Radius    float64 // merge radius in pixels at the tile extent
	MinPoints int     // minimum members for a multi-point cluster
	Extent    int     // tile extent in pixels
	MinZoom   int
	MaxZoom   int
	NodeSize  int // kd-tree leaf size
}

func DefaultOptions() Options {
	return Options{Radius: 80, MinPoints: 2, Extent: 512, MinZoom: 0, MaxZoom: 16, NodeSize: 64}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Radius <= 0 {
		o.Radius = d.Radius
	}
	if o.MinPoints < 1 {
		o.MinPoints = d.MinPoints
	}
	if o.Extent <= 0 {
		o.Extent = d.Extent
	}
	if o.MaxZoom <= 0 {
		o.MaxZoom = d.MaxZoom
	}
	if o.MinZoom < 0 || o.MinZoom > o.MaxZoom {
		o.MinZoom = 0
	}
	if o.NodeSize <= 0 {
		o.NodeSize = d.NodeSize
	}
	return o
}

// Zone is a group of stops. ID 0 with a nil Center is the unassigned zone;
// spatial zones are numbered from 1.
type Zone struct {
	ID      int
	Label   string
	Center  *geo.Point
	Members []model.Stop
	Zoom    int
}

func (z Zone) Count() int { return len(z.Members) }

func (z Zone) Unassigned() bool { return z.ID == 0 }

// MemberIDs lists member stop IDs in zone order.
func (z Zone) MemberIDs() []string {
	ids := make([]string, len(z.Members))
	for i, s := range z.Members {
		ids[i] = s.ID
	}
	return ids
}

// ZoomFor picks the clustering zoom for a cohort of n stops. Small cohorts
// cluster coarsely; large ones finely.
func ZoomFor(n int) int {
	switch {
	case n < 6:
		return 10
	case n <= 10:
		return 12
	case n <= 20:
		return 13
	default:
		return 14
	}
}

type Clusterer struct {
	opts Options
}

func New(opts Options) *Clusterer {
	return &Clusterer{opts: opts.withDefaults()}
}

func (c *Clusterer) Options() Options { return c.opts }

// Cluster partitions stops into zones. The result depends only on the set of
// stops and the options: input order does not matter and repeated calls
// return identical zones.
func (c *Clusterer) Cluster(stops []model.Stop) []Zone {
	if len(stops) == 0 {
		return []Zone{}
	}
	var valid, missing []model.Stop
	for _, s := range stops {
		if _, ok := s.Point(); ok {
			valid = append(valid, s)
		} else {
			missing = append(missing, s)
		}
	}
	sortByID(valid)
	sortByID(missing)

	var zones []Zone
	if len(valid) > 0 {
		zones = c.spatialZones(valid)
	}
	if len(missing) > 0 {
		zones = append(zones, Zone{ID: 0, Label: UnassignedLabel, Members: missing})
	}
	return zones
}

func (c *Clusterer) spatialZones(valid []model.Stop) []Zone {
	xs := make([]float64, len(valid))
	ys := make([]float64, len(valid))
	rect := s2.EmptyRect()
	for i, s := range valid {
		p, _ := s.Point()
		xs[i] = lngX(p.Lng)
		ys[i] = latY(p.Lat)
		rect = rect.AddPoint(p.LatLng())
	}
	h := buildHierarchy(xs, ys, c.opts)
	zoom := ZoomFor(len(valid))

	minLng, minLat, maxLng, maxLat := bounds(rect)
	nodes := h.nodesIn(zoom, lngX(minLng), latY(maxLat), lngX(maxLng), latY(minLat))

	zones := make([]Zone, 0, len(nodes))
	for _, n := range nodes {
		leaves := append([]int(nil), n.leaves...)
		sort.Ints(leaves)
		members := make([]model.Stop, len(leaves))
		for i, li := range leaves {
			members[i] = valid[li]
		}
		var center geo.Point
		if n.count == 1 {
			center, _ = members[0].Point()
		} else {
			center = geo.Point{Lat: yLat(n.y), Lng: xLng(n.x)}
		}
		zones = append(zones, Zone{Center: &center, Members: members, Zoom: zoom})
	}

	sort.SliceStable(zones, func(i, j int) bool {
		a, b := zones[i], zones[j]
		if a.Center.Lng != b.Center.Lng {
			return a.Center.Lng < b.Center.Lng
		}
		if a.Center.Lat != b.Center.Lat {
			return a.Center.Lat < b.Center.Lat
		}
		return a.Members[0].ID < b.Members[0].ID
	})
	for i := range zones {
		zones[i].ID = i + 1
		zones[i].Label = fmt.Sprintf("Zone %d", i+1)
	}
	return zones
}

// bounds pads rect and returns it as min/max degrees. A degenerate box
// (empty, a single point or wrapping the antimeridian) widens to the world.
func bounds(rect s2.Rect) (minLng, minLat, maxLng, maxLat float64) {
	if rect.IsEmpty() || rect.IsPoint() || rect.Lng.IsInverted() {
		return -180, -90, 180, 90
	}
	padded := rect.Expanded(s2.LatLngFromDegrees(bboxPaddingDeg, bboxPaddingDeg))
	lo, hi := padded.Lo(), padded.Hi()
	minLng, maxLng = lo.Lng.Degrees(), hi.Lng.Degrees()
	if padded.Lng.IsInverted() {
		minLng, maxLng = -180, 180
	}
	return minLng, lo.Lat.Degrees(), maxLng, hi.Lat.Degrees()
}

func sortByID(stops []model.Stop) {
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].ID < stops[j].ID })
}
