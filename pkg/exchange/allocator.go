package exchange

import (
	"sort"
	"sync"
)

// Range is a contiguous block of IDP values exclusively owned by one device
// session. Start is inclusive; the block covers [Start, Start+Size).
type Range struct {
	Start int
	Size  int
}

// End returns the first IDP past the range (exclusive bound).
func (r Range) End() int {
	return r.Start + r.Size
}

// Contains reports whether idp falls inside the range.
func (r Range) Contains(idp int) bool {
	return idp >= r.Start && idp < r.End()
}

// RangeAllocator hands out disjoint fixed-size IDP ranges, lowest-first.
// Released ranges are reused first-fit so the address space stays bounded
// under long-running registration churn.
//
// Thread-safe for concurrent access.
type RangeAllocator struct {
	size  int
	limit int

	mu        sync.Mutex
	allocated []Range // sorted by Start
}

// NewRangeAllocator creates an allocator granting ranges of the given size.
// Allocation starts at 1. size and limit fall back to DefaultRangeSize and
// DefaultIDPLimit when zero.
func NewRangeAllocator(size, limit int) *RangeAllocator {
	if size <= 0 {
		size = DefaultRangeSize
	}
	if limit <= 0 {
		limit = DefaultIDPLimit
	}
	return &RangeAllocator{size: size, limit: limit}
}

// Allocate returns the lowest free range of the configured size.
// Returns ErrAllocationExhausted when the identifier space is used up.
func (a *RangeAllocator) Allocate() (Range, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	candidate := 1
	insertAt := len(a.allocated)
	for i, r := range a.allocated {
		if candidate+a.size <= r.Start {
			insertAt = i
			break
		}
		candidate = r.End()
	}

	if candidate+a.size-1 > a.limit {
		return Range{}, ErrAllocationExhausted
	}

	rng := Range{Start: candidate, Size: a.size}
	a.allocated = append(a.allocated, Range{})
	copy(a.allocated[insertAt+1:], a.allocated[insertAt:])
	a.allocated[insertAt] = rng

	return rng, nil
}

// Release marks the range free for reuse. Releasing a range that is not
// allocated is a no-op.
func (a *RangeAllocator) Release(rng Range) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := sort.Search(len(a.allocated), func(i int) bool {
		return a.allocated[i].Start >= rng.Start
	})
	if i < len(a.allocated) && a.allocated[i].Start == rng.Start {
		a.allocated = append(a.allocated[:i], a.allocated[i+1:]...)
	}
}

// Count returns the number of live ranges.
func (a *RangeAllocator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocated)
}
