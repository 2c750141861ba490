package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock is an lfu.Clock under test control. By default time stands
// still; with a step every reading moves it forward, which gives elapsed
// time to code that measures itself. Safe for concurrent use.
type StubClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock standing at 2024-02-01 09:00 UTC, after the
// modification time MockFilesystemManager gives its files.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
}

// Now returns the current reading and then applies the step.
func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Step makes every later Now call advance the clock by d.
func (c *StubClock) Step(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = d
}

// StubIDGenerator hands out "id-1", "id-2", ... in call order.
type StubIDGenerator struct {
	mu   sync.Mutex
	next int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%d", g.next)
}
