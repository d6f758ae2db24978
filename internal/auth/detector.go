package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ysmood/gson"
	"go.uber.org/zap"
)

// ErrTimeout reports that the bounded authentication wait elapsed before
// either a connected state or a QR challenge became observable. It is
// distinct from transport failures so callers can re-issue the wait.
var ErrTimeout = errors.New("authentication wait timed out")

// Evaluator is the slice of the automation surface the detector needs.
type Evaluator interface {
	Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error)
	WaitFor(ctx context.Context, predicateJS string, timeout time.Duration) error
}

// Probe holds the page-side predicates the detector evaluates. The web
// client's internals are undocumented and shift between releases, so the
// predicates are injected rather than hard-coded; DefaultProbe targets the
// current build.
type Probe struct {
	// ConnectedJS evaluates to true once the session is authenticated.
	ConnectedJS string

	// ChallengeJS evaluates to true once a QR challenge is displayed.
	ChallengeJS string
}

// DefaultProbe returns predicates for the current WhatsApp Web internals:
// an open socket state on the internal Store, and the data-ref QR node.
func DefaultProbe() Probe {
	return Probe{
		ConnectedJS: `() => {
			try {
				if (window.Store && window.Store.Conn && window.Store.Stream) {
					return window.Store.Stream.displayInfo === 'NORMAL' || !!window.Store.Conn.me;
				}
				return !!document.querySelector('[data-testid="chat-list"], #pane-side');
			} catch (e) {
				return false;
			}
		}`,
		ChallengeJS: `() => {
			try {
				return !!document.querySelector('div[data-ref], canvas[aria-label*="QR"], [data-testid="qrcode"]');
			} catch (e) {
				return false;
			}
		}`,
	}
}

// Outcome discriminates what ended a successful bounded wait.
type Outcome int

const (
	// OutcomeConnected means the session is authenticated.
	OutcomeConnected Outcome = iota
	// OutcomeChallenge means a QR challenge is being displayed.
	OutcomeChallenge
)

// Detector determines whether the automated page has reached an
// authenticated state.
type Detector struct {
	surface Evaluator
	probe   Probe
	log     *zap.Logger
}

// NewDetector creates a detector over the given surface. A zero Probe is
// replaced with DefaultProbe; a nil logger with a nop.
func NewDetector(surface Evaluator, probe Probe, log *zap.Logger) *Detector {
	if probe.ConnectedJS == "" || probe.ChallengeJS == "" {
		probe = DefaultProbe()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{surface: surface, probe: probe, log: log.Named("auth")}
}

// IsAuthenticated runs the one-shot connected probe. Probe failures are
// reported as "not authenticated", never propagated; a broken page simply
// has not authenticated yet.
func (d *Detector) IsAuthenticated(ctx context.Context) bool {
	res, err := d.surface.Eval(ctx, d.probe.ConnectedJS)
	if err != nil {
		d.log.Debug("connected probe failed", zap.Error(err))
		return false
	}
	return res.Bool()
}

// WaitForLogin suspends until the page is either authenticated or showing a
// QR challenge, bounded by timeout. The deadline surfaces as ErrTimeout;
// other failures are transport errors.
func (d *Detector) WaitForLogin(ctx context.Context, timeout time.Duration) (Outcome, error) {
	predicate := fmt.Sprintf(`() => (%s)() || (%s)()`, d.probe.ConnectedJS, d.probe.ChallengeJS)

	if err := d.surface.WaitFor(ctx, predicate, timeout); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return 0, fmt.Errorf("wait for login: %w", err)
	}

	if d.IsAuthenticated(ctx) {
		return OutcomeConnected, nil
	}
	return OutcomeChallenge, nil
}
