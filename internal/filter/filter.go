// Package filter applies registered transforms to outgoing notices.
package filter

import (
	"sync"

	"github.com/powa-team/errnotify/internal/notice"
)

// Filter transforms a notice before it is sent. Returning nil suppresses
// the notice; no later filter runs.
type Filter func(n *notice.Notice) *notice.Notice

// Apply runs filters in order, feeding each result into the next, and stops
// at the first nil result.
func Apply(n *notice.Notice, filters []Filter) *notice.Notice {
	for _, f := range filters {
		if n == nil {
			return nil
		}
		n = f(n)
	}
	return n
}

// Chain is an ordered, concurrency-safe filter list. Add publishes a new
// slice, so a Snapshot never changes after it is taken.
type Chain struct {
	mu      sync.Mutex
	filters []Filter
}

// Add appends f. Nil filters are dropped.
func (c *Chain) Add(f Filter) {
	if f == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Filter, len(c.filters), len(c.filters)+1)
	copy(next, c.filters)
	c.filters = append(next, f)
}

// Snapshot returns the filters registered so far. Callers must not modify it.
func (c *Chain) Snapshot() []Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// Len returns the number of registered filters.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.filters)
}
