// Package sequence implements the allocator of the sequence numbers assigned
// to the proposals.
//
// Sequence numbers are strictly increasing and start at 1 so that zero is
// never a valid sequence number.
package sequence

import (
	"math"
	"sync/atomic"

	"golang.org/x/xerrors"
)

// ErrExhausted is returned when no sequence number is left.
var ErrExhausted = xerrors.New("sequence numbers exhausted")

// Allocator hands out strictly increasing sequence numbers. It is safe for
// concurrent use and never blocks.
type Allocator struct {
	last uint32
}

// NewAllocator returns an allocator whose first value is 1.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// NewAllocatorAt returns an allocator that resumes after the given value.
func NewAllocatorAt(last uint32) *Allocator {
	return &Allocator{last: last}
}

// Next returns the next sequence number.
func (a *Allocator) Next() (uint32, error) {
	for {
		last := atomic.LoadUint32(&a.last)
		if last == math.MaxUint32 {
			return 0, ErrExhausted
		}

		if atomic.CompareAndSwapUint32(&a.last, last, last+1) {
			return last + 1, nil
		}
	}
}

// Current returns the last sequence number handed out, or zero if none.
func (a *Allocator) Current() uint32 {
	return atomic.LoadUint32(&a.last)
}
