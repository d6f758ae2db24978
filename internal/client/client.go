// Package client implements the session lifecycle engine: the state machine
// that takes a browser-hosted WhatsApp Web session from cold start through
// QR authentication to the ready state, plus the outbound action gateway.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wadrive/internal/auth"
	"wadrive/internal/bridge"
	"wadrive/internal/browser"
	"wadrive/internal/config"
	"wadrive/internal/events"
	"wadrive/internal/types"
)

// Status is the lifecycle state. Exactly one value is held at any time.
type Status int

const (
	StatusInitializing Status = iota
	StatusAuthenticating
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusAuthenticating:
		return "authenticating"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

// AcquireFunc produces the automation surface backing a session. The
// default uses browser.Open; tests inject fakes.
type AcquireFunc func(ctx context.Context, cfg *config.Config, log *zap.Logger) (browser.Surface, error)

// Option customizes a Client.
type Option func(*Client)

// WithAcquire replaces the surface acquisition strategy.
func WithAcquire(fn AcquireFunc) Option {
	return func(c *Client) { c.acquire = fn }
}

// WithProbe replaces the authentication detection predicates.
func WithProbe(p auth.Probe) Option {
	return func(c *Client) { c.probe = p }
}

// Client drives one WhatsApp Web session. Lifecycle transitions are
// serialized under a single mutex; bridge callbacks arrive concurrently and
// are tolerated at any point, including during teardown.
type Client struct {
	id      string
	cfg     *config.Config
	log     *zap.Logger
	events  *events.Dispatcher
	acquire AcquireFunc
	probe   auth.Probe

	mu          sync.Mutex
	status      Status
	surface     browser.Surface
	detector    *auth.Detector
	policy      *auth.Policy
	initialized bool
	sessionCtx  context.Context
	sessionStop context.CancelFunc

	// teardown tracks async destroy tasks scheduled from bridge
	// callbacks, joined by Destroy.
	teardown sync.WaitGroup
}

// New creates a client. Nil cfg and log fall back to defaults.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) *Client {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		id:     uuid.NewString(),
		cfg:    cfg,
		log:    log.Named("client"),
		events: events.NewDispatcher(log),
		status: StatusInitializing,
		probe:  auth.DefaultProbe(),
		acquire: func(ctx context.Context, cfg *config.Config, log *zap.Logger) (browser.Surface, error) {
			return browser.Open(ctx, cfg, log)
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ID returns the client instance id.
func (c *Client) ID() string { return c.id }

// Status returns the current lifecycle status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Events returns the notification dispatcher for subscriptions.
func (c *Client) Events() *events.Dispatcher { return c.events }

// alive reports whether a live session is present. Bridge routes check this
// to no-op during the destroy race window.
func (c *Client) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized && c.surface != nil
}

// Initialize acquires the browser session, installs the callback bridge and
// navigates to the web client. It does not retry; transport failures
// surface to the caller. A second call on a live session is a no-op.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	surface, err := c.acquire(ctx, c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}

	// Callback registration precedes navigation so the CDP bindings exist
	// before any page script runs; the in-page hooks are evaluated after
	// the document is loaded.
	br := bridge.New(pageHandler{c}, c.alive, c.log)
	if err := br.Install(surface); err != nil {
		_ = surface.Close(ctx)
		return err
	}

	if err := surface.Navigate(ctx, c.cfg.Client.TargetURL); err != nil {
		_ = surface.Close(ctx)
		return err
	}

	if err := br.InstallHooks(ctx, surface); err != nil {
		_ = surface.Close(ctx)
		return err
	}

	sctx, stop := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.initialized {
		// Lost an Initialize race; discard the extra session.
		c.mu.Unlock()
		stop()
		_ = surface.Close(ctx)
		return nil
	}
	c.surface = surface
	c.detector = auth.NewDetector(surface, c.probe, c.log)
	c.policy = auth.NewPolicy(c.cfg.Client.QRMaxRetries)
	c.initialized = true
	c.status = StatusInitializing
	c.sessionCtx = sctx
	c.sessionStop = stop
	c.mu.Unlock()

	c.log.Info("session initialized",
		zap.String("client_id", c.id),
		zap.String("target", c.cfg.Client.TargetURL))
	return nil
}

// Authenticate drives the session to the ready state. A restored session is
// detected by the one-shot probe and transitions directly; otherwise the
// call suspends until the page is either connected or showing a QR
// challenge, bounded by timeout (<=0 uses the configured default). On
// timeout the status stays Authenticating and auth.ErrTimeout surfaces.
func (c *Client) Authenticate(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.cfg.AuthTimeout()
	}

	c.mu.Lock()
	if !c.initialized || c.surface == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	det := c.detector
	sctx := c.sessionCtx
	prev := c.status
	c.status = StatusAuthenticating
	c.mu.Unlock()

	if prev != StatusAuthenticating {
		c.events.Publish(events.StateChanged{Previous: prev.String(), Current: StatusAuthenticating.String()})
	}

	// Tie the wait to the session lifetime so a destroy scheduled from a
	// bridge callback unblocks it.
	wctx, stop := context.WithCancel(ctx)
	defer stop()
	unwatch := context.AfterFunc(sctx, stop)
	defer unwatch()

	if det.IsAuthenticated(wctx) {
		return c.becomeReady(wctx)
	}

	outcome, err := det.WaitForLogin(wctx, timeout)
	if err != nil {
		if sctx.Err() != nil {
			return fmt.Errorf("authenticate: %w", ErrDestroyed)
		}
		c.events.Publish(events.Authenticated{OK: false, Err: err})
		if errors.Is(err, auth.ErrTimeout) {
			return err
		}
		return fmt.Errorf("authenticate: %w", err)
	}

	if outcome == auth.OutcomeConnected {
		return c.becomeReady(wctx)
	}

	// A QR challenge is on screen. The challenge codes arrive through the
	// bridge and readiness will follow the page's own ready event once
	// the code is scanned.
	c.log.Info("qr challenge presented, awaiting scan", zap.String("client_id", c.id))
	return nil
}

// becomeReady transitions Authenticating -> Ready: installs the in-page
// shims the gateway depends on, then notifies subscribers. Only reachable
// from Authenticating; any other state is a no-op (covers late or duplicate
// ready signals).
func (c *Client) becomeReady(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusAuthenticating || c.surface == nil {
		c.mu.Unlock()
		return nil
	}
	surface := c.surface
	prev := c.status
	c.status = StatusReady
	c.mu.Unlock()

	if _, err := surface.Eval(ctx, shimScript); err != nil {
		// Gateway calls re-resolve lazily, so a failed install is
		// degraded service, not a dead session.
		c.log.Warn("shim install failed", zap.Error(err))
	}

	c.events.Publish(events.StateChanged{Previous: prev.String(), Current: StatusReady.String()})
	c.events.Publish(events.Authenticated{OK: true})
	c.events.Publish(events.Ready{})
	c.log.Info("session ready", zap.String("client_id", c.id))
	return nil
}

// Destroy tears the session down: closes the page and browser, resets the
// status to Initializing and joins any teardown scheduled from callbacks.
// It is idempotent, callable from any state, and never fails; cleanup
// errors are logged and swallowed so shutdown paths cannot be blocked.
func (c *Client) Destroy(ctx context.Context) {
	c.destroy(ctx)
	c.teardown.Wait()
}

// destroy is the non-joining teardown used both by Destroy and by async
// teardown tasks (which must not wait on themselves).
func (c *Client) destroy(ctx context.Context) {
	c.mu.Lock()
	if !c.initialized && c.surface == nil {
		c.mu.Unlock()
		return
	}
	surface := c.surface
	stop := c.sessionStop
	prev := c.status
	c.surface = nil
	c.detector = nil
	c.initialized = false
	c.status = StatusInitializing
	c.sessionCtx = nil
	c.sessionStop = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if surface != nil {
		if err := surface.Close(ctx); err != nil {
			c.log.Warn("session close failed", zap.Error(err))
		}
	}

	if prev != StatusInitializing {
		c.events.Publish(events.StateChanged{Previous: prev.String(), Current: StatusInitializing.String()})
	}
	c.log.Info("session destroyed", zap.String("client_id", c.id))
}

// pageHandler routes bridge callbacks into the lifecycle engine.
type pageHandler struct{ c *Client }

var _ bridge.Handler = pageHandler{}

// QRChanged accounts one QR challenge against the retry budget. The
// exceeded decision and the counter increment are atomic under the client
// mutex; teardown is scheduled asynchronously so the page-side caller is
// never blocked. Challenges arriving after Ready are a spurious late event
// and are ignored.
func (h pageHandler) QRChanged(code string) {
	c := h.c

	c.mu.Lock()
	if !c.initialized || c.surface == nil || c.policy == nil || c.status == StatusReady {
		c.mu.Unlock()
		return
	}
	d := c.policy.Observe()
	c.mu.Unlock()

	if !d.Accept {
		return
	}
	c.events.Publish(events.QR{Code: code})

	if d.Exhausted {
		c.log.Warn("qr retry budget exhausted",
			zap.String("client_id", c.id), zap.Int("challenges", d.Count))
		c.events.Publish(events.Disconnected{Reason: DisconnectReasonQRExhausted})
		c.teardown.Add(1)
		go func() {
			defer c.teardown.Done()
			c.destroy(context.Background())
		}()
	}
}

// RuntimeEvent interprets the events the page runtime surfaces. Unknown
// names are ignored for forward compatibility.
func (h pageHandler) RuntimeEvent(name string, data json.RawMessage) {
	c := h.c
	switch name {
	case bridge.EventReady:
		_ = c.becomeReady(context.Background())
	case bridge.EventDisconnected:
		reason := disconnectReasonUnknown
		var payload struct {
			Reason string `json:"reason"`
		}
		if len(data) > 0 && json.Unmarshal(data, &payload) == nil && payload.Reason != "" {
			reason = payload.Reason
		}
		c.events.Publish(events.Disconnected{Reason: reason})
	default:
		c.log.Debug("ignoring page event", zap.String("event", name))
	}
}

// MessageAdded relays an inbound message to subscribers.
func (h pageHandler) MessageAdded(msg types.Message) {
	if !h.c.alive() {
		return
	}
	h.c.events.Publish(events.Message{Message: msg})
}
