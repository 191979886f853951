package fetcher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/bft-labs/bgloc/pkg/dispatch"
	"github.com/bft-labs/bgloc/pkg/lifecycle"
	"github.com/bft-labs/bgloc/pkg/location"
	"github.com/bft-labs/bgloc/pkg/store"
)

const (
	testCallback   int64 = 1111
	testDispatcher int64 = 2222
)

var epoch = time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)

// journal records strategy calls across restarts.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeStrategy struct {
	id       int
	mode     location.Mode
	settings location.Settings
	journal  *journal
	startErr error

	mu       sync.Mutex
	listener location.Listener
}

func (f *fakeStrategy) Mode() location.Mode { return f.mode }

func (f *fakeStrategy) Start(l location.Listener) error {
	f.journal.add(fmt.Sprintf("start#%d", f.id))
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.listener = l
	f.mu.Unlock()
	return nil
}

func (f *fakeStrategy) Stop() {
	f.journal.add(fmt.Sprintf("stop#%d", f.id))
	f.mu.Lock()
	f.listener = nil
	f.mu.Unlock()
}

func (f *fakeStrategy) Emit(s location.Sample) {
	f.mu.Lock()
	l := f.listener
	f.mu.Unlock()
	if l != nil {
		l.OnSample(s)
	}
}

func (f *fakeStrategy) Fail(err error) {
	f.mu.Lock()
	l := f.listener
	f.mu.Unlock()
	if l != nil {
		l.OnError(err)
	}
}

type strategyFactory struct {
	journal  *journal
	startErr error

	mu    sync.Mutex
	built []*fakeStrategy
}

func (f *strategyFactory) Build(mode location.Mode, s location.Settings) (location.Strategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := &fakeStrategy{id: len(f.built) + 1, mode: mode, settings: s, journal: f.journal, startErr: f.startErr}
	f.built = append(f.built, st)
	return st, nil
}

func (f *strategyFactory) SetStartErr(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

func (f *strategyFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

func (f *strategyFactory) Last() *fakeStrategy {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.built) == 0 {
		return nil
	}
	return f.built[len(f.built)-1]
}

type recordingHandler struct {
	NopEventHandler

	mu         sync.Mutex
	states     []StateChangeEvent
	deliveries []DeliveryEvent
	drops      []DropEvent
}

func (r *recordingHandler) OnStateChange(e StateChangeEvent) {
	r.mu.Lock()
	r.states = append(r.states, e)
	r.mu.Unlock()
}

func (r *recordingHandler) OnDelivery(e DeliveryEvent) {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, e)
	r.mu.Unlock()
}

func (r *recordingHandler) OnDrop(e DropEvent) {
	r.mu.Lock()
	r.drops = append(r.drops, e)
	r.mu.Unlock()
}

func (r *recordingHandler) Deliveries() []DeliveryEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DeliveryEvent(nil), r.deliveries...)
}

func (r *recordingHandler) Drops() []DropEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DropEvent(nil), r.drops...)
}

func (r *recordingHandler) States() []lifecycle.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]lifecycle.State, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.Current)
	}
	return out
}

// callbackSink collects events delivered to the callback environment.
type callbackSink struct {
	mu     sync.Mutex
	events []dispatch.CallbackEvent
}

func (c *callbackSink) deliver(ev dispatch.CallbackEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *callbackSink) Events() []dispatch.CallbackEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]dispatch.CallbackEvent(nil), c.events...)
}

type harness struct {
	c        *Controller
	backend  *store.MemoryBackend
	settings *store.Settings
	clock    *clocktesting.FakeClock
	factory  *strategyFactory
	journal  *journal
	perm     *PermissionSwitch
	events   *recordingHandler
	sink     *callbackSink
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		backend: store.NewMemoryBackend(),
		clock:   clocktesting.NewFakeClock(epoch),
		journal: &journal{},
		perm:    NewPermissionSwitch(true),
		events:  &recordingHandler{},
		sink:    &callbackSink{},
	}
	h.settings = store.NewSettings(store.NewKV(h.backend))
	h.factory = &strategyFactory{journal: h.journal}

	reg := dispatch.NewRegistry()
	reg.Register(testDispatcher, dispatch.NewFuncEntrypoint(h.sink.deliver))

	all := append([]Option{
		WithStrategyFactory(h.factory.Build),
		WithClock(h.clock),
		WithPermission(h.perm),
		WithEventHandler(h.events),
		WithResolver(reg),
	}, opts...)

	c, err := New(h.settings, all...)
	require.NoError(t, err)
	h.c = c
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return h
}

func (h *harness) active(t *testing.T) bool {
	t.Helper()
	v, err := h.c.IsActivated(context.Background())
	require.NoError(t, err)
	return v
}

func sample(lat float64) location.Sample {
	return location.Sample{Latitude: lat, Longitude: lat, Timestamp: epoch, Battery: 50}
}
