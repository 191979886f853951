package location

import (
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStreaming(feed *fakeFeed, minDistance float64) *Streaming {
	s := NewStreaming(feed, nil, Settings{MinDistanceMeters: minDistance}, nil)
	s.NewBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return s
}

func TestStreamingDistanceFilter(t *testing.T) {
	feed := &fakeFeed{}
	s := newTestStreaming(feed, 10)
	l := &recordingListener{}
	require.NoError(t, s.Start(l))
	defer s.Stop()

	require.True(t, feed.PushFix(fixAt(52.52, 13.405, 0)))
	require.True(t, feed.PushFix(fixAt(52.52003, 13.405, time.Second)))
	require.True(t, feed.PushFix(fixAt(52.5201, 13.405, 2*time.Second)))
	require.True(t, feed.Push(Update{}))

	samples := l.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, 52.52, samples[0].Latitude)
	assert.Equal(t, 52.5201, samples[1].Latitude)
}

func TestStreamingStopIsSynchronous(t *testing.T) {
	feed := &fakeFeed{}
	s := newTestStreaming(feed, 0)
	l := &recordingListener{}
	require.NoError(t, s.Start(l))

	require.True(t, feed.PushFix(fixAt(1, 1, 0)))
	s.Stop()

	assert.False(t, feed.PushFix(fixAt(2, 2, time.Second)), "nobody reads after stop")
	assert.Len(t, l.Samples(), 1)
}

func TestStreamingReopensAfterFailure(t *testing.T) {
	feed := &fakeFeed{}
	s := newTestStreaming(feed, 0)
	l := &recordingListener{}
	require.NoError(t, s.Start(l))
	defer s.Stop()

	require.True(t, feed.Push(Update{Err: errors.New("feed hiccup")}))
	require.Eventually(t, func() bool { return feed.Opened() == 2 }, time.Second, time.Millisecond)

	require.True(t, feed.PushFix(fixAt(1, 1, 0)))
	require.Eventually(t, func() bool { return len(l.Samples()) == 1 }, time.Second, time.Millisecond)
	assert.Empty(t, l.Errors())
}

func TestStreamingOutlivesExhaustedRetryPolicy(t *testing.T) {
	feed := &fakeFeed{}
	s := newTestStreaming(feed, 0)
	s.NewBackOff = func() backoff.BackOff { return &backoff.StopBackOff{} }
	s.RestartDelay = time.Millisecond
	l := &recordingListener{}
	require.NoError(t, s.Start(l))
	defer s.Stop()

	feed.SetOpenErr(errors.New("feed temporarily unavailable"))
	require.True(t, feed.Push(Update{Err: errors.New("feed hiccup")}))
	require.Eventually(t, func() bool { return feed.Attempts() >= 3 }, time.Second, time.Millisecond)

	feed.SetOpenErr(nil)
	require.Eventually(t, func() bool { return feed.Opened() == 2 }, time.Second, time.Millisecond)
	require.True(t, feed.PushFix(fixAt(1, 1, 0)))
	require.Eventually(t, func() bool { return len(l.Samples()) == 1 }, time.Second, time.Millisecond)
	assert.Empty(t, l.Errors(), "transient outages are never reported as terminal")
}

func TestStreamingReopenPermissionDenied(t *testing.T) {
	feed := &fakeFeed{}
	s := newTestStreaming(feed, 0)
	l := &recordingListener{}
	require.NoError(t, s.Start(l))
	defer s.Stop()

	feed.SetOpenErr(ErrPermissionDenied)
	require.True(t, feed.Push(Update{Err: errors.New("feed hiccup")}))
	require.Eventually(t, func() bool { return len(l.Errors()) == 1 }, time.Second, time.Millisecond)
	assert.True(t, IsPermissionDenied(l.Errors()[0]))
}

func TestStreamingPermissionDenied(t *testing.T) {
	feed := &fakeFeed{}
	s := newTestStreaming(feed, 0)
	l := &recordingListener{}
	require.NoError(t, s.Start(l))
	defer s.Stop()

	require.True(t, feed.Push(Update{Err: ErrPermissionDenied}))
	require.Eventually(t, func() bool { return len(l.Errors()) == 1 }, time.Second, time.Millisecond)
	assert.True(t, IsPermissionDenied(l.Errors()[0]))
	assert.Equal(t, 1, feed.Opened(), "permission failures are not retried")
}

func TestStreamingOpenError(t *testing.T) {
	feed := &fakeFeed{openErr: errors.New("no feed")}
	s := newTestStreaming(feed, 0)

	err := s.Start(&recordingListener{})
	var serr *SourceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, ModeStreaming, serr.Mode)
}
