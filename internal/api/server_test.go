package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/bgloc/pkg/fetcher"
	"github.com/bft-labs/bgloc/pkg/lifecycle"
	"github.com/bft-labs/bgloc/pkg/location"
	"github.com/bft-labs/bgloc/pkg/store"
)

type fakeCommands struct {
	calls     []string
	cfg       store.SamplingConfig
	active    bool
	callback  [2]int64
	update    fetcher.ConfigUpdate
	granted   *bool
	err       error
	startErr  error
	lastState lifecycle.State
}

func newFakeCommands() *fakeCommands {
	return &fakeCommands{cfg: store.DefaultSamplingConfig()}
}

func (f *fakeCommands) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeCommands) OnBootCompleted(context.Context) error { return f.record("boot") }
func (f *fakeCommands) OnForeground(context.Context) error { return f.record("foreground") }
func (f *fakeCommands) OnBackground(context.Context) error { return f.record("background") }
func (f *fakeCommands) OnConfigChanged(context.Context) error { return f.record("config") }

func (f *fakeCommands) OnPermissionChanged(_ context.Context, granted bool) error {
	f.granted = &granted
	return f.record("permission")
}

func (f *fakeCommands) SetCallback(_ context.Context, cb, disp int64) error {
	if cb == 0 || disp == 0 {
		return fmt.Errorf("%w: handle is zero", fetcher.ErrInvalidArgument)
	}
	f.callback = [2]int64{cb, disp}
	return f.record("callback")
}

func (f *fakeCommands) Configure(_ context.Context, u fetcher.ConfigUpdate) error {
	next, err := u.Apply(f.cfg)
	if err != nil {
		return err
	}
	f.update = u
	f.cfg = next
	return f.record("configure")
}

func (f *fakeCommands) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	f.lastState = lifecycle.StateRunning
	return f.record("start")
}

func (f *fakeCommands) Stop(context.Context) error {
	f.active = false
	f.lastState = lifecycle.StateStopped
	return f.record("stop")
}

func (f *fakeCommands) IsActivated(context.Context) (bool, error) { return f.active, f.err }
func (f *fakeCommands) Configuration(context.Context) (store.SamplingConfig, error) {
	return f.cfg, f.err
}
func (f *fakeCommands) State() lifecycle.State { return f.lastState }
func (f *fakeCommands) Dispatched() bool { return f.callback[1] != 0 }
func (f *fakeCommands) LeaseHeld() bool { return false }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_StartStopActivated(t *testing.T) {
	cmd := newFakeCommands()
	srv := NewServer(cmd)

	rec := do(t, srv, http.MethodPost, "/v1/start", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodGet, "/v1/activated", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ActivatedResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Activated)

	rec = do(t, srv, http.MethodPost, "/v1/stop", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, cmd.active)
	assert.Equal(t, []string{"start", "stop"}, cmd.calls)
}

func TestServer_Configure(t *testing.T) {
	cmd := newFakeCommands()
	srv := NewServer(cmd)

	rec := do(t, srv, http.MethodPost, "/v1/configure", `{"interval":30,"mode":"locationUpdate"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConfigurationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(30), resp.Interval)
	assert.Equal(t, "streaming", resp.Mode)
	assert.Equal(t, store.DefaultMinDistanceMeters, resp.DistanceFilter)
	require.NotNil(t, cmd.update.MinInterval)
	assert.Equal(t, 30*time.Second, *cmd.update.MinInterval)
	assert.Nil(t, cmd.update.MinDistanceMeters)
}

func TestServer_ConfigureRejectsInvalid(t *testing.T) {
	cmd := newFakeCommands()
	srv := NewServer(cmd)

	rec := do(t, srv, http.MethodPost, "/v1/configure", `{"mode":"teleport"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/v1/configure", `{"unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, location.DefaultMode, cmd.cfg.Mode)

	rec = do(t, srv, http.MethodPost, "/v1/configure", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no configuration fields")
	assert.NotContains(t, cmd.calls, "configure")
}

func TestServer_Configuration(t *testing.T) {
	cmd := newFakeCommands()
	srv := NewServer(cmd)

	rec := do(t, srv, http.MethodGet, "/v1/configuration", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"interval":5,"distanceFilter":10,"mode":"hybrid","useBackgroundActivitySessionManager":true}`, rec.Body.String())
}

func TestServer_Callback(t *testing.T) {
	cmd := newFakeCommands()
	srv := NewServer(cmd)

	rec := do(t, srv, http.MethodPost, "/v1/callback", `{"callbackHandle":11,"dispatcherHandle":22}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, [2]int64{11, 22}, cmd.callback)

	rec = do(t, srv, http.MethodPost, "/v1/callback", `{"callbackHandle":0,"dispatcherHandle":22}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Signals(t *testing.T) {
	cmd := newFakeCommands()
	srv := NewServer(cmd)

	for _, name := range []string{"boot", "foreground", "background", "config"} {
		rec := do(t, srv, http.MethodPost, "/v1/signals/"+name, "")
		assert.Equal(t, http.StatusNoContent, rec.Code, name)
	}
	rec := do(t, srv, http.MethodPost, "/v1/signals/permission", `{"granted":false}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, cmd.granted)
	assert.False(t, *cmd.granted)

	assert.Equal(t, []string{"boot", "foreground", "background", "config", "permission"}, cmd.calls)
}

func TestServer_ErrorMapping(t *testing.T) {
	cmd := newFakeCommands()
	srv := NewServer(cmd)

	cmd.startErr = fetcher.ErrClosed
	rec := do(t, srv, http.MethodPost, "/v1/start", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	cmd.startErr = errors.New("settings store unavailable")
	rec = do(t, srv, http.MethodPost, "/v1/start", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"settings store unavailable"}`, rec.Body.String())
}

func TestServer_HealthAndMetrics(t *testing.T) {
	cmd := newFakeCommands()
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "bgloc_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := NewServer(cmd, WithMetrics(reg))

	rec := do(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","state":"Stopped","dispatched":false,"leaseHeld":false}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bgloc_test_total 1")
}
