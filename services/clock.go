package services

import (
	"sync"
	"time"
)

type ClockStage uint8

const (
	StageQuestion ClockStage = iota + 1
	StageResults
	StageTeardown
)

// ClockKey identifies one scheduled transition. Keys carry the question
// index so a timer that fires after the room has already moved on is
// recognized as stale and discarded.
type ClockKey struct {
	Stage    ClockStage
	Question int
}

// Scheduler drives a room's timed transitions. One timer is armed at a
// time; scheduling replaces any armed timer. Cancel of an already-fired or
// already-cancelled key is a no-op.
type Scheduler interface {
	Schedule(key ClockKey, d time.Duration, fn func(ClockKey))
	Cancel(key ClockKey)
	Stop()
}

// GameClock is the production Scheduler, one per room.
type GameClock struct {
	mu      sync.Mutex
	timer   *time.Timer
	key     ClockKey
	armed   bool
	stopped bool
}

func NewGameClock() *GameClock {
	return &GameClock{}
}

func (c *GameClock) Schedule(key ClockKey, d time.Duration, fn func(ClockKey)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.armed && c.timer != nil {
		c.timer.Stop()
	}
	c.key = key
	c.armed = true
	c.timer = time.AfterFunc(d, func() {
		if c.claim(key) {
			fn(key)
		}
	})
}

// claim marks the timer as fired if key is still the armed key.
func (c *GameClock) claim(key ClockKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || !c.armed || c.key != key {
		return false
	}
	c.armed = false
	return true
}

func (c *GameClock) Cancel(key ClockKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armed || c.key != key {
		return
	}
	c.armed = false
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Stop cancels any armed timer and rejects all future scheduling. Used at
// room teardown.
func (c *GameClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.armed = false
	if c.timer != nil {
		c.timer.Stop()
	}
}
