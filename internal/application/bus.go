package application

import (
	"sync"

	"github.com/hytools/jarsync/internal/domain/model"
)

// Cell is a last-value-cached observable: it holds the most recent value
// and replays it to new subscribers. Publishing is last-write-wins -- a slow
// subscriber sees only the latest value, never a backlog of intermediate
// ones.
type Cell[T any] struct {
	mu    sync.Mutex
	value T
	set   bool
	subs  map[int]chan T
	next  int
}

// NewCell creates an empty cell with no current value.
func NewCell[T any]() *Cell[T] {
	return &Cell[T]{subs: make(map[int]chan T)}
}

// Set publishes a new value, replacing the cached one and notifying every
// subscriber. A subscriber that has not consumed the prior value loses it.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.value = v
	c.set = true
	for _, ch := range c.subs {
		select {
		case <-ch: // drop the stale buffered value
		default:
		}
		ch <- v
	}
}

// Get returns the current value and whether one has ever been set.
func (c *Cell[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.set
}

// Subscribe registers a new subscriber. If the cell holds a value it is
// replayed immediately. The returned func unsubscribes; calling it more
// than once is a no-op.
func (c *Cell[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = ch
	if c.set {
		ch <- c.value
	}
	c.mu.Unlock()

	unsubscribe := func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
	return ch, unsubscribe
}

// Signal is a zero-payload trigger. Unlike a Cell it does not replay:
// subscribers only observe emissions that happen after they subscribe.
// Emissions coalesce -- a subscriber that has not consumed a pending
// emission sees later ones as a single wakeup.
type Signal struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

// NewSignal creates a Signal.
func NewSignal() *Signal {
	return &Signal{subs: make(map[int]chan struct{})}
}

// Emit wakes every subscriber.
func (s *Signal) Emit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default: // an unconsumed wakeup is already pending
		}
	}
}

// Subscribe registers a subscriber. The returned func unsubscribes.
func (s *Signal) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, unsubscribe
}

// Progress is the pipeline's published download progress.
// Running false means the pipeline is idle and Percent is meaningless.
type Progress struct {
	Percent int
	Running bool
}

// Bus groups the observable state cells that tie the pipeline, the device
// login flow, and their consumers together. It is owned by the composition
// root and scoped to the pipeline's lifetime; nothing here is process-global.
type Bus struct {
	// Progress is the pipeline's download progress, reset to idle at the
	// start and end of every run.
	Progress *Cell[Progress]

	// AuthNeeded is raised when no usable credential exists and cleared by
	// a successful login.
	AuthNeeded *Cell[bool]

	// Prompt carries the active device-authorization prompt, or nil when no
	// login is in flight.
	Prompt *Cell[*model.DevicePrompt]

	// AuthError is the latest human-readable authentication failure, or ""
	// when there is none. A new login attempt clears it.
	AuthError *Cell[string]

	// Archive is the most recently acquired archive.
	Archive *Cell[*Archive]

	// Authenticated fires after a login persists a credential; the download
	// pipeline re-enters its top-level operation when it fires.
	Authenticated *Signal
}

// NewBus creates a Bus with all cells empty.
func NewBus() *Bus {
	return &Bus{
		Progress:      NewCell[Progress](),
		AuthNeeded:    NewCell[bool](),
		Prompt:        NewCell[*model.DevicePrompt](),
		AuthError:     NewCell[string](),
		Archive:       NewCell[*Archive](),
		Authenticated: NewSignal(),
	}
}
