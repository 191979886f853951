package location

import "time"

// UnknownBattery is the battery level reported when the platform cannot
// provide one.
const UnknownBattery = -1

// Sample is an immutable position report handed from a strategy to the
// throttle stage.
type Sample struct {
	Latitude  float64
	Longitude float64

	// Speed is in meters per second.
	Speed float64

	// Bearing is in degrees clockwise from true north.
	Bearing float64

	Timestamp time.Time

	// Battery is 0-100, or UnknownBattery.
	Battery int
}

// TimestampMillis returns the sample time in Unix milliseconds.
func (s Sample) TimestampMillis() int64 {
	return s.Timestamp.UnixMilli()
}

// Fix is a raw report produced by a platform provider.
type Fix struct {
	Latitude  float64
	Longitude float64
	Speed     float64
	Bearing   float64
	Time      time.Time

	// Stationary is set by live feeds when the device is judged to be at rest.
	Stationary bool
}

// Battery reports the current battery level.
type Battery interface {
	Level() int
}

// BatteryFunc adapts a function to the Battery interface.
type BatteryFunc func() int

// Level calls f.
func (f BatteryFunc) Level() int { return f() }

type unknownBattery struct{}

func (unknownBattery) Level() int { return UnknownBattery }

// NoBattery is a Battery that always reports UnknownBattery.
var NoBattery Battery = unknownBattery{}

func sampleFromFix(f Fix, b Battery) Sample {
	level := b.Level()
	if level < 0 || level > 100 {
		level = UnknownBattery
	}
	return Sample{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Speed:     f.Speed,
		Bearing:   f.Bearing,
		Timestamp: f.Time,
		Battery:   level,
	}
}
