package throttle

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/bft-labs/bgloc/pkg/location"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type collector struct {
	mu  sync.Mutex
	got []location.Sample
}

func (c *collector) sink(s location.Sample) {
	c.mu.Lock()
	c.got = append(c.got, s)
	c.mu.Unlock()
}

func (c *collector) Latitudes() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float64, 0, len(c.got))
	for _, s := range c.got {
		out = append(out, s.Latitude)
	}
	return out
}

type countingObserver struct {
	deferred, superseded, dropped int
}

func (o *countingObserver) Deferred(location.Sample, time.Duration) { o.deferred++ }
func (o *countingObserver) Superseded(location.Sample)              { o.superseded++ }
func (o *countingObserver) Dropped(location.Sample)                 { o.dropped++ }

func sampleAt(lat float64) location.Sample {
	return location.Sample{Latitude: lat, Battery: location.UnknownBattery}
}

func TestGateBurst(t *testing.T) {
	fc := clocktesting.NewFakeClock(epoch)
	c := &collector{}
	obs := &countingObserver{}
	g := New(5*time.Second, c.sink, WithClock(fc), WithObserver(obs))

	g.Receive(sampleAt(0))
	assert.Equal(t, []float64{0}, c.Latitudes(), "first sample passes immediately")

	fc.Step(time.Second)
	g.Receive(sampleAt(1))
	fc.Step(time.Second)
	g.Receive(sampleAt(2))
	assert.True(t, g.Pending())
	assert.Equal(t, []float64{0}, c.Latitudes())

	fc.Step(3 * time.Second)
	assert.Equal(t, []float64{0, 2}, c.Latitudes(), "latest sample of the burst is flushed")
	last, ok := g.LastEmittedAt()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(5*time.Second), last)

	fc.Step(time.Second)
	g.Receive(sampleAt(6))
	assert.Equal(t, []float64{0, 2}, c.Latitudes())

	fc.Step(4 * time.Second)
	assert.Equal(t, []float64{0, 2, 6}, c.Latitudes())
	assert.False(t, g.Pending())

	assert.Equal(t, 3, obs.deferred)
	assert.Equal(t, 1, obs.superseded)
	assert.Equal(t, 0, obs.dropped)
}

func TestGateQuietPeriodPassesImmediately(t *testing.T) {
	fc := clocktesting.NewFakeClock(epoch)
	c := &collector{}
	g := New(5*time.Second, c.sink, WithClock(fc))

	g.Receive(sampleAt(0))
	fc.Step(5 * time.Second)
	g.Receive(sampleAt(5))
	fc.Step(7 * time.Second)
	g.Receive(sampleAt(12))

	assert.Equal(t, []float64{0, 5, 12}, c.Latitudes())
	assert.False(t, g.Pending())
}

func TestGateZeroInterval(t *testing.T) {
	fc := clocktesting.NewFakeClock(epoch)
	c := &collector{}
	g := New(0, c.sink, WithClock(fc))

	for i := 0; i < 5; i++ {
		g.Receive(sampleAt(float64(i)))
	}
	assert.Len(t, c.Latitudes(), 5)
	assert.False(t, fc.HasWaiters())
}

func TestGateStop(t *testing.T) {
	fc := clocktesting.NewFakeClock(epoch)
	c := &collector{}
	obs := &countingObserver{}
	g := New(5*time.Second, c.sink, WithClock(fc), WithObserver(obs))

	g.Receive(sampleAt(0))
	fc.Step(time.Second)
	g.Receive(sampleAt(1))
	require.True(t, g.Pending())

	assert.True(t, g.Stop())
	assert.False(t, g.Stop(), "second stop is a no-op")

	fc.Step(10 * time.Second)
	g.Receive(sampleAt(11))
	assert.Equal(t, []float64{0}, c.Latitudes())
	assert.Equal(t, 1, obs.dropped)
	assert.False(t, g.Pending(), "samples after stop are ignored entirely")
}

func TestGateSpacing(t *testing.T) {
	const interval = 2 * time.Second
	fc := clocktesting.NewFakeClock(epoch)
	c := &collector{}
	g := New(interval, c.sink, WithClock(fc))

	rng := rand.New(rand.NewSource(42))
	var emits []time.Time
	record := func() {
		if at, ok := g.LastEmittedAt(); ok && (len(emits) == 0 || !emits[len(emits)-1].Equal(at)) {
			emits = append(emits, at)
		}
	}

	var last float64
	for i := 0; i < 500; i++ {
		fc.Step(time.Duration(rng.Intn(1500)) * time.Millisecond)
		record()
		last = float64(i)
		g.Receive(sampleAt(last))
		record()
	}
	fc.Step(interval)
	record()

	for i := 1; i < len(emits); i++ {
		assert.GreaterOrEqual(t, emits[i].Sub(emits[i-1]), interval, "deliveries %d and %d", i-1, i)
	}
	got := c.Latitudes()
	require.NotEmpty(t, got)
	assert.Equal(t, last, got[len(got)-1], "the final sample is always delivered")
	assert.Len(t, got, len(emits))
}
