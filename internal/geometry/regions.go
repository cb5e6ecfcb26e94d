package geometry

import (
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"propertypro/server/internal/models"
)

// Region aggregates the known listing locations of one region.
type Region struct {
	Name     string
	Points   []orb.Point
	Centroid orb.Point
	Hull     orb.Ring
}

// DistanceKm is the great-circle distance between two lon/lat points.
func DistanceKm(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b) / 1000
}

// RegionKey normalises a region name for lookups.
func RegionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// BuildRegions groups listings with coordinates by region and derives a
// centroid and a convex hull for each.
func BuildRegions(props []models.PropertyRecord) map[string]*Region {
	regions := make(map[string]*Region)
	for i := range props {
		p := &props[i]
		if !p.HasCoordinates() || p.Region == "" {
			continue
		}
		key := RegionKey(p.Region)
		r, ok := regions[key]
		if !ok {
			r = &Region{Name: p.Region}
			regions[key] = r
		}
		r.Points = append(r.Points, p.Point())
	}

	for _, r := range regions {
		r.Centroid, _ = planar.CentroidArea(orb.MultiPoint(r.Points))
		r.Hull = convexHull(r.Points)
	}
	return regions
}

// Centroid looks up the centroid of a region by name.
func Centroid(regions map[string]*Region, name string) (orb.Point, bool) {
	r, ok := regions[RegionKey(name)]
	if !ok {
		return orb.Point{}, false
	}
	return r.Centroid, true
}

// Feature renders the region as a hull polygon, or its centroid when
// fewer than three distinct points are known.
func (r *Region) Feature() *geojson.Feature {
	var feature *geojson.Feature
	if len(r.Hull) >= 4 {
		feature = geojson.NewFeature(orb.Polygon{r.Hull})
	} else {
		feature = geojson.NewFeature(r.Centroid)
	}
	feature.Properties = geojson.Properties{
		"region":        r.Name,
		"point_count":   len(r.Points),
		"geometry_type": "hull",
	}
	return feature
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// convexHull uses Andrew's monotone chain and returns a closed ring, or
// nil when fewer than three distinct points are given.
func convexHull(points []orb.Point) orb.Ring {
	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	unique := pts[:0]
	for i, p := range pts {
		if i == 0 || !p.Equal(pts[i-1]) {
			unique = append(unique, p)
		}
	}
	if len(unique) < 3 {
		return nil
	}

	hull := make([]orb.Point, 0, 2*len(unique))
	for _, p := range unique {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(unique) - 2; i >= 0; i-- {
		p := unique[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	if len(hull) < 4 {
		// collinear input
		return nil
	}
	return orb.Ring(hull)
}
