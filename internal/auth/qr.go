// Package auth implements QR challenge accounting and authentication
// detection against the automated page.
package auth

// Decision is the outcome of observing one QR challenge.
type Decision struct {
	// Count is the running number of challenges this attempt, including
	// the observed one.
	Count int

	// Accept reports whether the challenge should still be surfaced to
	// subscribers. Once the retry budget has been exhausted no further
	// challenges are accepted.
	Accept bool

	// Exhausted is set exactly once: on the challenge that first exceeds
	// the configured maximum. The caller reacts by disconnecting.
	Exhausted bool
}

// Policy counts QR challenges within a single authentication attempt.
// Max = 0 means unlimited. Max challenges are always permitted; Exhausted
// fires on challenge Max+1, never earlier.
//
// Policy is not self-synchronized; the lifecycle manager serializes calls
// under its transition lock.
type Policy struct {
	Max int

	count   int
	tripped bool
}

// NewPolicy creates a counter with the given maximum.
func NewPolicy(max int) *Policy {
	if max < 0 {
		max = 0
	}
	return &Policy{Max: max}
}

// Observe records one QR challenge and returns the resulting decision.
func (p *Policy) Observe() Decision {
	if p.tripped {
		return Decision{Count: p.count, Accept: false}
	}

	p.count++
	if p.Max > 0 && p.count > p.Max {
		p.tripped = true
		return Decision{Count: p.count, Accept: true, Exhausted: true}
	}
	return Decision{Count: p.count, Accept: true}
}

// Count returns the number of challenges observed so far.
func (p *Policy) Count() int { return p.count }

// Exhausted reports whether the budget has been exceeded.
func (p *Policy) Exhausted() bool { return p.tripped }
