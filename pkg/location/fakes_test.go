package location

import (
	"context"
	"sync"
	"time"
)

type recordingListener struct {
	mu      sync.Mutex
	samples []Sample
	errs    []error
}

func (r *recordingListener) OnSample(s Sample) {
	r.mu.Lock()
	r.samples = append(r.samples, s)
	r.mu.Unlock()
}

func (r *recordingListener) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recordingListener) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sample(nil), r.samples...)
}

func (r *recordingListener) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

type fakeSub struct {
	mgr       *fakeManager
	h         FixHandler
	cancelled bool
}

func (s *fakeSub) Cancel() {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	s.cancelled = true
}

// fakeManager delivers fixes synchronously to every live subscription.
type fakeManager struct {
	mu          sync.Mutex
	updates     []*fakeSub
	wakes       []*fakeSub
	lastRequest UpdateRequest
	err         error
}

func (m *fakeManager) RequestUpdates(req UpdateRequest, h FixHandler) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.lastRequest = req
	s := &fakeSub{mgr: m, h: h}
	m.updates = append(m.updates, s)
	return s, nil
}

func (m *fakeManager) MonitorSignificantChanges(h FixHandler) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := &fakeSub{mgr: m, h: h}
	m.wakes = append(m.wakes, s)
	return s, nil
}

func (m *fakeManager) live(subs []*fakeSub) []FixHandler {
	var out []FixHandler
	for _, s := range subs {
		if !s.cancelled {
			out = append(out, s.h)
		}
	}
	return out
}

func (m *fakeManager) ActiveUpdates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live(m.updates))
}

func (m *fakeManager) ActiveWakes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live(m.wakes))
}

func (m *fakeManager) Update(f Fix) {
	m.mu.Lock()
	hs := m.live(m.updates)
	m.mu.Unlock()
	for _, h := range hs {
		h.HandleFix(f)
	}
}

func (m *fakeManager) UpdateError(err error) {
	m.mu.Lock()
	hs := m.live(m.updates)
	m.mu.Unlock()
	for _, h := range hs {
		h.HandleError(err)
	}
}

func (m *fakeManager) Wake(f Fix) {
	m.mu.Lock()
	hs := m.live(m.wakes)
	m.mu.Unlock()
	for _, h := range hs {
		h.HandleFix(f)
	}
}

// fakeFeed hands out unbuffered channels that the test pushes into.
type fakeFeed struct {
	mu      sync.Mutex
	streams  []chan Update
	opened   int
	attempts int
	openErr  error
}

func (f *fakeFeed) Open(ctx context.Context) (<-chan Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.openErr != nil {
		return nil, f.openErr
	}
	ch := make(chan Update)
	f.streams = append(f.streams, ch)
	f.opened++
	return ch, nil
}

func (f *fakeFeed) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *fakeFeed) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeFeed) SetOpenErr(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

func (f *fakeFeed) latest() chan Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

// Push blocks until the consumer has taken u.
func (f *fakeFeed) Push(u Update) bool {
	ch := f.latest()
	if ch == nil {
		return false
	}
	select {
	case ch <- u:
		return true
	case <-time.After(time.Second):
		return false
	}
}

func (f *fakeFeed) PushFix(fx Fix) bool { return f.Push(Update{Fix: &fx}) }

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func fixAt(lat, lon float64, offset time.Duration) Fix {
	return Fix{Latitude: lat, Longitude: lon, Speed: 1.5, Bearing: 90, Time: t0.Add(offset)}
}
