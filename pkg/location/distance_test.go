package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name       string
		lat1, lon1 float64
		lat2, lon2 float64
		want       float64
		delta      float64
	}{
		{"same point", 35.6812, 139.7671, 35.6812, 139.7671, 0, 1e-9},
		{"one degree of latitude", 0, 0, 1, 0, 111195, 50},
		{"tokyo to osaka", 35.6812, 139.7671, 34.7025, 135.4959, 403000, 3000},
		{"short hop", 52.5200, 13.4050, 52.5201, 13.4050, 11.1, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.delta)
		})
	}
}

func TestDistanceFilter(t *testing.T) {
	f := newDistanceFilter(10)

	assert.True(t, f.accept(Fix{Latitude: 52.52, Longitude: 13.405}), "first fix always passes")
	assert.False(t, f.accept(Fix{Latitude: 52.52003, Longitude: 13.405}), "about 3m away")
	assert.False(t, f.accept(Fix{Latitude: 52.52006, Longitude: 13.405}), "about 7m from last reported")
	assert.True(t, f.accept(Fix{Latitude: 52.5201, Longitude: 13.405}), "about 11m from last reported")
}

func TestDistanceFilterZero(t *testing.T) {
	f := newDistanceFilter(0)
	fx := Fix{Latitude: 1, Longitude: 1}
	assert.True(t, f.accept(fx))
	assert.True(t, f.accept(fx))
}
