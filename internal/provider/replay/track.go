package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidTrack is returned when a track file cannot be used.
var ErrInvalidTrack = errors.New("replay: invalid track")

// Point is one position on a track.
type Point struct {
	Latitude   float64       `yaml:"lat"`
	Longitude  float64       `yaml:"lon"`
	Speed      float64       `yaml:"speed"`
	Bearing    float64       `yaml:"bearing"`
	Stationary bool          `yaml:"stationary"`
	After      time.Duration `yaml:"after"` // delay since the previous point
}

// Track is a scripted route.
type Track struct {
	Name    string  `yaml:"name"`
	Battery *int    `yaml:"battery"`
	Loop    bool    `yaml:"loop"`
	Points  []Point `yaml:"points"`
}

// LoadTrack reads a YAML track file.
func LoadTrack(path string) (Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Track{}, fmt.Errorf("read track %s: %w", path, err)
	}
	return ParseTrack(bytes.NewReader(data))
}

// ParseTrack decodes and validates a YAML track.
func ParseTrack(r io.Reader) (Track, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var t Track
	if err := dec.Decode(&t); err != nil {
		return Track{}, fmt.Errorf("%w: %v", ErrInvalidTrack, err)
	}
	if err := t.Validate(); err != nil {
		return Track{}, err
	}
	return t, nil
}

// Validate checks coordinates and delays.
func (t Track) Validate() error {
	if len(t.Points) == 0 {
		return fmt.Errorf("%w: no points", ErrInvalidTrack)
	}
	if t.Battery != nil && (*t.Battery < 0 || *t.Battery > 100) {
		return fmt.Errorf("%w: battery %d out of range", ErrInvalidTrack, *t.Battery)
	}
	for i, p := range t.Points {
		switch {
		case p.Latitude < -90 || p.Latitude > 90:
			return fmt.Errorf("%w: point %d latitude %v", ErrInvalidTrack, i, p.Latitude)
		case p.Longitude < -180 || p.Longitude > 180:
			return fmt.Errorf("%w: point %d longitude %v", ErrInvalidTrack, i, p.Longitude)
		case p.After < 0:
			return fmt.Errorf("%w: point %d has negative delay", ErrInvalidTrack, i)
		case p.Speed < 0:
			return fmt.Errorf("%w: point %d has negative speed", ErrInvalidTrack, i)
		}
	}
	if t.Loop && t.duration() == 0 {
		return fmt.Errorf("%w: looping track needs a non-zero delay", ErrInvalidTrack)
	}
	return nil
}

func (t Track) duration() time.Duration {
	var d time.Duration
	for _, p := range t.Points {
		d += p.After
	}
	return d
}
