package henrio

import "testing"

// newTestLoop constructs a Loop for unit tests that need one purely for its
// ID generator / registry plumbing and never actually call RunUntil/
// RunForever. Full scheduler behavior is exercised in example_test.go.
func newTestLoop(t *testing.T) (*Loop, error) {
	t.Helper()
	return New()
}
