package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("peer", 3, time.Minute)

	assert.True(t, cb.Allow())
	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Allow(), "below threshold stays closed")
	cb.RecordFailure()
	assert.False(t, cb.Allow(), "threshold reached opens the circuit")
	assert.Equal(t, 3, cb.Failures())
}

func TestBreakerResetsOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker("peer", 3, time.Minute)
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	assert.Equal(t, 0, cb.Failures())

	// The slate is clean: it takes a full run of failures to open again.
	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Allow())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	cb := NewCircuitBreaker("peer", 1, 10*time.Millisecond)
	cb.RecordFailure()
	assert.False(t, cb.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.Allow(), "timeout elapsed allows a probe")

	// A failed probe slams it shut again.
	cb.RecordFailure()
	assert.False(t, cb.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.True(t, cb.Allow())
	assert.Equal(t, 0, cb.Failures())
}

func TestGroupKeepsIndependentBreakers(t *testing.T) {
	g := NewGroup(1, time.Minute)
	g.For("a").RecordFailure()

	assert.False(t, g.For("a").Allow())
	assert.True(t, g.For("b").Allow())
	// Same target resolves to the same breaker.
	assert.Same(t, g.For("a"), g.For("a"))
}
