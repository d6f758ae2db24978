// Package events fans out typed session notifications to subscribers.
//
// The dispatcher keeps an explicit, ordered subscriber list per notification
// kind. Dispatch walks a snapshot of that list, so unsubscribing during
// dispatch is well-defined: the removal takes effect from the next publish.
// Ordering is best-effort FIFO per originating callback only; notifications
// from independent occurrences may interleave.
package events

import (
	"sync"

	"go.uber.org/zap"

	"wadrive/internal/types"
)

// Kind identifies a notification kind.
type Kind int

const (
	KindQR Kind = iota
	KindAuthenticated
	KindReady
	KindMessage
	KindMessageCreated
	KindStateChanged
	KindDisconnected
)

func (k Kind) String() string {
	switch k {
	case KindQR:
		return "qr"
	case KindAuthenticated:
		return "authenticated"
	case KindReady:
		return "ready"
	case KindMessage:
		return "message"
	case KindMessageCreated:
		return "message_created"
	case KindStateChanged:
		return "state_changed"
	case KindDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is a typed notification.
type Event interface {
	Kind() Kind
}

// QR carries a freshly issued QR challenge. Code is the opaque payload to be
// rendered and scanned.
type QR struct {
	Code string
}

func (QR) Kind() Kind { return KindQR }

// Authenticated reports the outcome of an authentication attempt.
type Authenticated struct {
	OK  bool
	Err error // optional detail for the failure variant
}

func (Authenticated) Kind() Kind { return KindAuthenticated }

// Ready fires once the session reaches the operational state.
type Ready struct{}

func (Ready) Kind() Kind { return KindReady }

// Message carries an inbound message observed by the page.
type Message struct {
	Message types.Message
}

func (Message) Kind() Kind { return KindMessage }

// MessageCreated carries a message sent through the outbound gateway.
type MessageCreated struct {
	Message types.Message
}

func (MessageCreated) Kind() Kind { return KindMessageCreated }

// StateChanged reports a lifecycle transition. The engine's exposed status
// already reflects Current by the time subscribers observe this event.
type StateChanged struct {
	Previous string
	Current  string
}

func (StateChanged) Kind() Kind { return KindStateChanged }

// Disconnected reports session loss with a human-readable reason.
type Disconnected struct {
	Reason string
}

func (Disconnected) Kind() Kind { return KindDisconnected }

// Handler receives published events.
type Handler func(Event)

type subscriber struct {
	id      uint64
	handler Handler
}

// Subscription is a handle for removing a subscriber.
type Subscription struct {
	once sync.Once
	d    *Dispatcher
	kind Kind
	id   uint64
}

// Unsubscribe removes the subscriber. Safe to call more than once and safe
// to call from inside a handler; the removal applies from the next publish.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.d.remove(s.kind, s.id)
	})
}

// Dispatcher is the fan-out broadcaster.
type Dispatcher struct {
	log *zap.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[Kind][]subscriber
}

// NewDispatcher creates a dispatcher. A nil logger is replaced with a nop.
func NewDispatcher(log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		log:  log.Named("events"),
		subs: make(map[Kind][]subscriber),
	}
}

// Subscribe registers a handler for a notification kind. Handlers for a kind
// run in registration order.
func (d *Dispatcher) Subscribe(kind Kind, h Handler) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	d.subs[kind] = append(d.subs[kind], subscriber{id: id, handler: h})
	return &Subscription{d: d, kind: kind, id: id}
}

func (d *Dispatcher) remove(kind Kind, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.subs[kind]
	for i, s := range list {
		if s.id == id {
			d.subs[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers an event to all subscribers of its kind, synchronously
// and in registration order.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	list := d.subs[ev.Kind()]
	snapshot := make([]subscriber, len(list))
	copy(snapshot, list)
	d.mu.RUnlock()

	if len(snapshot) == 0 {
		d.log.Debug("event dropped, no subscribers", zap.Stringer("kind", ev.Kind()))
		return
	}
	for _, s := range snapshot {
		s.handler(ev)
	}
}
