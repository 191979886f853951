// Package metrics exposes controller events as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bft-labs/bgloc/pkg/fetcher"
	"github.com/bft-labs/bgloc/pkg/lifecycle"
)

const namespace = "bgloc"

// Collector records controller events. It implements fetcher.EventHandler
// and is safe to use as a nil pointer, in which case nothing is recorded.
type Collector struct {
	samples    *prometheus.CounterVec
	deliveries prometheus.Counter
	drops      *prometheus.CounterVec
	dispatches *prometheus.CounterVec
	state      *prometheus.GaugeVec
	lease      prometheus.Gauge
	lastFix    prometheus.Gauge
}

// New registers the collector's metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	c := &Collector{
		samples: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Samples produced by the active location strategy.",
		}, []string{"mode"}),
		deliveries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Callback events handed to the callback environment.",
		}),
		drops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drops_total",
			Help:      "Samples that were never delivered, by reason.",
		}, []string{"reason"}),
		dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_attempts_total",
			Help:      "Launch attempts of the callback environment, by result.",
		}, []string{"result"}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "controller_state",
			Help:      "1 for the current lifecycle state, 0 otherwise.",
		}, []string{"state"}),
		lease: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "keepalive_lease_held",
			Help:      "1 while a background keep-alive lease is held.",
		}),
		lastFix: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_delivery_timestamp_seconds",
			Help:      "Fix time of the most recently delivered sample.",
		}),
	}
	c.setState(lifecycle.StateStopped)
	return c
}

func (c *Collector) setState(current lifecycle.State) {
	for _, s := range []lifecycle.State{lifecycle.StateStopped, lifecycle.StateStarting, lifecycle.StateRunning} {
		v := 0.0
		if s == current {
			v = 1
		}
		c.state.WithLabelValues(s.String()).Set(v)
	}
}

// OnStateChange implements fetcher.EventHandler.
func (c *Collector) OnStateChange(e fetcher.StateChangeEvent) {
	if c == nil {
		return
	}
	c.setState(e.Current)
}

// OnSample implements fetcher.EventHandler.
func (c *Collector) OnSample(e fetcher.SampleEvent) {
	if c == nil {
		return
	}
	c.samples.WithLabelValues(string(e.Mode)).Inc()
}

// OnDelivery implements fetcher.EventHandler.
func (c *Collector) OnDelivery(e fetcher.DeliveryEvent) {
	if c == nil {
		return
	}
	c.deliveries.Inc()
	c.lastFix.Set(e.Event.Timestamp / 1000)
}

// OnDrop implements fetcher.EventHandler.
func (c *Collector) OnDrop(e fetcher.DropEvent) {
	if c == nil {
		return
	}
	c.drops.WithLabelValues(string(e.Reason)).Inc()
}

// OnDispatch implements fetcher.EventHandler.
func (c *Collector) OnDispatch(e fetcher.DispatchEvent) {
	if c == nil {
		return
	}
	result := "ok"
	if e.Err != nil {
		result = "error"
	}
	c.dispatches.WithLabelValues(result).Inc()
}

// OnLease implements fetcher.EventHandler.
func (c *Collector) OnLease(e fetcher.LeaseEvent) {
	if c == nil {
		return
	}
	if e.Held {
		c.lease.Set(1)
	} else {
		c.lease.Set(0)
	}
}

var _ fetcher.EventHandler = (*Collector)(nil)
