package henrio

import (
	"sync/atomic"
	"testing"
	"unsafe"
)

// TestSizeofAtomicUint64 verifies the constant FastState's padding math
// relies on.
func TestSizeofAtomicUint64(t *testing.T) {
	if got := unsafe.Sizeof(atomic.Uint64{}); got != sizeOfAtomicUint64 {
		t.Errorf("unsafe.Sizeof(atomic.Uint64{}) = %d, want %d", got, sizeOfAtomicUint64)
	}
}

// TestFastStatePadding verifies FastState occupies exactly two cache
// lines: a full line of leading padding, then the value padded out to a
// second full line, so the state word never shares a line with adjacent
// allocations.
func TestFastStatePadding(t *testing.T) {
	if got := unsafe.Sizeof(FastState{}); got != 2*sizeOfCacheLine {
		t.Errorf("unsafe.Sizeof(FastState{}) = %d, want %d", got, 2*sizeOfCacheLine)
	}
}
