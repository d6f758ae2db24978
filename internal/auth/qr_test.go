package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyTripsOnceStrictlyAboveMax(t *testing.T) {
	p := NewPolicy(2)

	d1 := p.Observe()
	assert.Equal(t, Decision{Count: 1, Accept: true}, d1)

	d2 := p.Observe()
	assert.Equal(t, Decision{Count: 2, Accept: true}, d2)

	// The third challenge is still surfaced, and trips the policy.
	d3 := p.Observe()
	assert.Equal(t, Decision{Count: 3, Accept: true, Exhausted: true}, d3)

	// After tripping, challenges are neither accepted nor re-signalled.
	d4 := p.Observe()
	assert.False(t, d4.Accept)
	assert.False(t, d4.Exhausted)
	assert.Equal(t, 3, d4.Count)
}

func TestPolicyMaxEqualsOne(t *testing.T) {
	// A single QR code shown once must never trip even with Max=1.
	p := NewPolicy(1)
	d := p.Observe()
	assert.True(t, d.Accept)
	assert.False(t, d.Exhausted)

	d = p.Observe()
	assert.True(t, d.Exhausted)
}

func TestPolicyZeroMeansUnlimited(t *testing.T) {
	p := NewPolicy(0)
	for i := 0; i < 1000; i++ {
		d := p.Observe()
		assert.True(t, d.Accept)
		assert.False(t, d.Exhausted)
	}
	assert.Equal(t, 1000, p.Count())
	assert.False(t, p.Exhausted())
}

func TestPolicyNegativeMaxTreatedAsUnlimited(t *testing.T) {
	p := NewPolicy(-3)
	for i := 0; i < 10; i++ {
		assert.False(t, p.Observe().Exhausted)
	}
}

func TestPolicyExhaustedExactlyOnce(t *testing.T) {
	for _, max := range []int{1, 2, 5, 17} {
		p := NewPolicy(max)
		fired := 0
		firedAt := 0
		for i := 1; i <= max*3; i++ {
			if p.Observe().Exhausted {
				fired++
				firedAt = i
			}
		}
		assert.Equal(t, 1, fired, "max=%d", max)
		assert.Equal(t, max+1, firedAt, "max=%d", max)
	}
}
