// Package bridge exposes host-side callbacks to script running inside the
// automated page and routes their invocations into the session engine.
//
// The entry point set is fixed and registered exactly once per live page,
// before authentication begins. Invocations arrive asynchronously and may
// race with teardown; every route checks liveness first and no-ops once the
// session is gone.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"wadrive/internal/types"
)

// Page-callable entry point names. The in-page hook script calls these via
// the CDP binding the automation surface installs.
const (
	CallbackQRChanged    = "_wadriveQrChanged"
	CallbackEventEmitted = "_wadriveEmitEvent"
	CallbackMessageAdded = "_wadriveMessageAdded"
)

// Runtime event names the lifecycle manager interprets. Anything else is
// relayed verbatim and ignored by the engine for forward compatibility.
const (
	EventReady        = "ready"
	EventDisconnected = "disconnected"
)

// Handler receives routed invocations. The lifecycle manager implements it.
type Handler interface {
	// QRChanged is invoked once per QR challenge the web client issues.
	QRChanged(code string)

	// RuntimeEvent is invoked for events the page runtime surfaces.
	// Unknown names must be ignored without error.
	RuntimeEvent(name string, data json.RawMessage)

	// MessageAdded is invoked once per inbound message.
	MessageAdded(msg types.Message)
}

// Exposer installs page-callable bindings.
type Exposer interface {
	Expose(name string, fn func(gson.JSON)) error
}

// Evaluator runs script in the page.
type Evaluator interface {
	Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error)
}

// Bridge owns the callback registrations for one page instance.
type Bridge struct {
	handler   Handler
	alive     func() bool
	log       *zap.Logger
	installed bool
}

// New creates a bridge routing into handler. alive gates every route; when
// it reports false the invocation is dropped silently (destroy race window).
func New(handler Handler, alive func() bool, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	if alive == nil {
		alive = func() bool { return true }
	}
	return &Bridge{handler: handler, alive: alive, log: log.Named("bridge")}
}

// Install exposes the entry points on the page. It must be called exactly
// once per page instance, before navigation; the CDP bindings persist
// across document loads.
func (b *Bridge) Install(surface Exposer) error {
	if b.installed {
		return fmt.Errorf("bridge already installed")
	}

	bindings := map[string]func(gson.JSON){
		CallbackQRChanged:    b.onQRChanged,
		CallbackEventEmitted: b.onEventEmitted,
		CallbackMessageAdded: b.onMessageAdded,
	}
	for name, fn := range bindings {
		if err := surface.Expose(name, fn); err != nil {
			return fmt.Errorf("expose %s: %w", name, err)
		}
	}

	b.installed = true
	b.log.Debug("bridge callbacks exposed")
	return nil
}

// InstallHooks evaluates the in-page script that forwards the web client's
// internal events into the exposed callbacks. Runs after navigation, once
// the target document exists; the script itself is idempotent.
func (b *Bridge) InstallHooks(ctx context.Context, surface Evaluator) error {
	if !b.installed {
		return fmt.Errorf("bridge callbacks not installed")
	}
	if _, err := surface.Eval(ctx, hookScript); err != nil {
		return fmt.Errorf("install page hooks: %w", err)
	}
	b.log.Debug("page hooks installed")
	return nil
}

func (b *Bridge) onQRChanged(raw gson.JSON) {
	if !b.alive() {
		return
	}
	var p qrPayload
	if !b.decode(CallbackQRChanged, raw, &p) {
		return
	}
	if p.Code == "" {
		b.log.Warn("qr payload missing code, dropped")
		return
	}
	b.handler.QRChanged(p.Code)
}

func (b *Bridge) onEventEmitted(raw gson.JSON) {
	if !b.alive() {
		return
	}
	var p eventPayload
	if !b.decode(CallbackEventEmitted, raw, &p) {
		return
	}
	if p.Name == "" {
		b.log.Warn("event payload missing name, dropped")
		return
	}
	b.handler.RuntimeEvent(p.Name, p.Data)
}

func (b *Bridge) onMessageAdded(raw gson.JSON) {
	if !b.alive() {
		return
	}
	var p messagePayload
	if !b.decode(CallbackMessageAdded, raw, &p) {
		return
	}
	msg, err := types.MessageFromPayload(p.Message)
	if err != nil {
		b.log.Warn("message payload dropped", zap.Error(err))
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	b.handler.MessageAdded(msg)
}

// decode unmarshals and version-checks a payload envelope. Malformed or
// unknown payloads are a logged no-op, never a fault.
func (b *Bridge) decode(callback string, raw gson.JSON, into versioned) bool {
	data, err := raw.MarshalJSON()
	if err != nil {
		b.log.Warn("unreadable payload dropped", zap.String("callback", callback), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(data, into); err != nil {
		b.log.Warn("malformed payload dropped", zap.String("callback", callback), zap.Error(err))
		return false
	}
	if v := into.version(); v < 1 || v > payloadVersion {
		b.log.Warn("unsupported payload version dropped",
			zap.String("callback", callback), zap.Int("version", v))
		return false
	}
	return true
}
