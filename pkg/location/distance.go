package location

import "math"

const earthRadiusMeters = 6371008.8

// Distance returns the great-circle distance in meters between two points
// given in decimal degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	dφ := (lat2 - lat1) * math.Pi / 180
	dλ := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dφ/2)*math.Sin(dφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// distanceFilter passes a fix only when it lies at least min meters from
// the last fix it passed. The first fix always passes.
type distanceFilter struct {
	min      float64
	last     Fix
	haveLast bool
}

func newDistanceFilter(min float64) *distanceFilter {
	return &distanceFilter{min: min}
}

func (d *distanceFilter) accept(f Fix) bool {
	if d.haveLast && Distance(d.last.Latitude, d.last.Longitude, f.Latitude, f.Longitude) < d.min {
		return false
	}
	d.record(f)
	return true
}

func (d *distanceFilter) record(f Fix) {
	d.last = f
	d.haveLast = true
}
