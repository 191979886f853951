package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/bft-labs/bgloc/pkg/log"
)

// WebhookConfig configures a webhook environment.
type WebhookConfig struct {
	// URL receives one POST per event with a JSON body.
	URL string

	// AuthToken, if set, is sent as a bearer token.
	AuthToken string

	// QueueSize bounds the events waiting to be sent. Events arriving when
	// the queue is full are dropped. Default 64.
	QueueSize int

	// MaxTries bounds the attempts per event. Default 5.
	MaxTries uint

	// Timeout bounds a single attempt. Default 10s.
	Timeout time.Duration

	// OnDrop, if set, is called for every event that could not be sent.
	OnDrop func(ev CallbackEvent, err error)
}

func (c WebhookConfig) withDefaults() WebhookConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.MaxTries == 0 {
		c.MaxTries = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// errQueueFull is reported to OnDrop when Deliver cannot enqueue.
var errQueueFull = errors.New("dispatch: webhook queue full")

// WebhookEntrypoint launches environments that POST events to a URL.
type WebhookEntrypoint struct {
	cfg    WebhookConfig
	client HTTPClient
	logger log.Logger

	// NewBackOff builds the retry policy for one event.
	NewBackOff func() backoff.BackOff
}

// NewWebhookEntrypoint creates a webhook entrypoint.
func NewWebhookEntrypoint(cfg WebhookConfig, client HTTPClient, logger log.Logger) *WebhookEntrypoint {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebhookEntrypoint{
		cfg:    cfg.withDefaults(),
		client: client,
		logger: log.OrNoop(logger).With(log.String("environment", "webhook")),
		NewBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

// Launch implements Entrypoint.
func (w *WebhookEntrypoint) Launch(ctx context.Context) (Environment, error) {
	if w.cfg.URL == "" {
		return nil, errors.New("webhook url is empty")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	env := &webhookEnvironment{
		ep:     w,
		queue:  make(chan CallbackEvent, w.cfg.QueueSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go env.run(runCtx)
	return env, nil
}

type webhookEnvironment struct {
	ep     *WebhookEntrypoint
	queue  chan CallbackEvent
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func (e *webhookEnvironment) Deliver(ev CallbackEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- ev:
	default:
		e.ep.logger.Warn("webhook queue full, dropping event")
		e.drop(ev, errQueueFull)
	}
}

// Close stops accepting events, lets queued ones drain, and gives up on
// in-flight retries.
func (e *webhookEnvironment) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	select {
	case <-e.done:
	case <-time.After(e.ep.cfg.Timeout):
		e.cancel()
		<-e.done
	}
	e.cancel()
	return nil
}

func (e *webhookEnvironment) run(ctx context.Context) {
	defer close(e.done)
	for ev := range e.queue {
		if err := e.send(ctx, ev); err != nil {
			e.ep.logger.Warn("webhook delivery failed", log.Err(err))
			e.drop(ev, err)
		}
	}
}

func (e *webhookEnvironment) drop(ev CallbackEvent, err error) {
	if e.ep.cfg.OnDrop != nil {
		e.ep.cfg.OnDrop(ev, err)
	}
}

func (e *webhookEnvironment) send(ctx context.Context, ev CallbackEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, e.post(ctx, body, ev.CallbackHandle)
	},
		backoff.WithBackOff(e.ep.NewBackOff()),
		backoff.WithMaxTries(e.ep.cfg.MaxTries),
	)
	return err
}

func (e *webhookEnvironment) post(ctx context.Context, body []byte, handle int64) error {
	ctx, cancel := context.WithTimeout(ctx, e.ep.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.ep.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bgloc-Callback-Handle", strconv.FormatInt(handle, 10))
	req.Header.Set("X-Bgloc-OSArch", runtime.GOOS+"/"+runtime.GOARCH)
	if e.ep.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.ep.cfg.AuthToken)
	}

	resp, err := e.ep.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err = fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	if resp.StatusCode/100 == 4 && resp.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(err)
	}
	return err
}
