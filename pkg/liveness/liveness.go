// Package liveness implements the broker's liveness cache (spec §4.D /
// component F): a small memoization of "who is alive, as of when" reports
// per service type, with a staleness cutoff.
package liveness

import (
	"sync"
	"time"
)

// Clock abstracts the monotonic clock so staleness is testable without a
// real sleep.
type Clock interface {
	Now() time.Time
}

// RealClock reads the real monotonic clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

type entry struct {
	timestamp time.Time
	hosts     []int
}

// Cache maps service-type to the most recently pushed (timestamp,
// host-list) pair. push_hosts_state/is_host_alive are not serialized with
// storage I/O (spec §5): last-writer-wins per service type is acceptable,
// so Cache only needs its own mutex, independent of the broker's storage
// lock.
type Cache struct {
	clock   Clock
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

// NewCache constructs an empty liveness cache with the given staleness
// cutoff (HOST_ALIVE_TIMEOUT_SECS).
func NewCache(clock Clock, timeout time.Duration) *Cache {
	if clock == nil {
		clock = RealClock{}
	}

	return &Cache{
		clock:   clock,
		timeout: timeout,
		entries: make(map[string]entry),
	}
}

// PushHostsState records hosts as the latest liveness report for
// serviceType, stamped with the cache's clock.
func (c *Cache) PushHostsState(serviceType string, hosts []int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[serviceType] = entry{
		timestamp: c.clock.Now(),
		hosts:     append([]int(nil), hosts...),
	}
}

// IsHostAlive returns the most recently pushed host list for serviceType
// if it is no older than the staleness cutoff, else an empty list (spec
// §3 invariant 7 / testable property #5).
func (c *Cache) IsHostAlive(serviceType string) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[serviceType]
	if !ok {
		return nil
	}

	if c.clock.Now().Sub(e.timestamp) > c.timeout {
		return nil
	}

	return append([]int(nil), e.hosts...)
}
