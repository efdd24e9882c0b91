package geo

import "math"

// earthRadiusM is the mean Earth radius in meters used by the haversine formula.
const earthRadiusM = 6371000

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Position is a sampled location fix. Altitude is meters above sea level,
// zero when the provider could not determine it.
type Position struct {
	Point
	Altitude float64
	Accuracy float64
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusM * c
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Boundary is a geometric predicate answering whether a position lies inside it.
type Boundary interface {
	Contains(p Position) bool
}

// Circle is a circular boundary around a center point.
type Circle struct {
	Center Point
	Radius float64 // meters
}

// Contains reports whether p is within Radius meters of the center.
// Altitude is ignored for circular boundaries.
func (c Circle) Contains(p Position) bool {
	return Distance(c.Center, p.Point) <= c.Radius
}

// Box3D is the bounding rectangle of a set of corner points plus an altitude band.
type Box3D struct {
	Corners []Point
	MinAlt  float64
	MaxAlt  float64
}

// Contains reports whether p falls inside the lat/lon bounding box of the
// corners and within the altitude band.
func (b Box3D) Contains(p Position) bool {
	if len(b.Corners) == 0 {
		return false
	}

	minLat, maxLat := b.Corners[0].Lat, b.Corners[0].Lat
	minLon, maxLon := b.Corners[0].Lon, b.Corners[0].Lon
	for _, c := range b.Corners[1:] {
		minLat = math.Min(minLat, c.Lat)
		maxLat = math.Max(maxLat, c.Lat)
		minLon = math.Min(minLon, c.Lon)
		maxLon = math.Max(maxLon, c.Lon)
	}

	return p.Lat >= minLat && p.Lat <= maxLat &&
		p.Lon >= minLon && p.Lon <= maxLon &&
		p.Altitude >= b.MinAlt && p.Altitude <= b.MaxAlt
}
