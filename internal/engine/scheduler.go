package engine

import (
	"slices"
)

// TaskID identifies a scheduled callback.
type TaskID uint64

type task struct {
	id TaskID
	at float64
	fn func()
}

// Scheduler runs deferred callbacks against the sim clock. Callbacks due at
// the same time run in scheduling order. A callback must check that its
// target still exists; cancelling is optional.
type Scheduler struct {
	now    float64
	nextID TaskID
	tasks  []task // sorted by at, then id
}

// Now returns the sim time in seconds.
func (s *Scheduler) Now() float64 { return s.now }

// After schedules fn to run once delay seconds of sim time have passed.
func (s *Scheduler) After(delay float64, fn func()) TaskID {
	s.nextID++
	t := task{id: s.nextID, at: s.now + max(delay, 0), fn: fn}
	i, _ := slices.BinarySearchFunc(s.tasks, t, func(a, b task) int {
		switch {
		case a.at < b.at:
			return -1
		case a.at > b.at:
			return 1
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	s.tasks = slices.Insert(s.tasks, i, t)
	return t.id
}

// Cancel drops a pending callback. Unknown IDs are ignored.
func (s *Scheduler) Cancel(id TaskID) bool {
	i := slices.IndexFunc(s.tasks, func(t task) bool { return t.id == id })
	if i < 0 {
		return false
	}
	s.tasks = slices.Delete(s.tasks, i, i+1)
	return true
}

// Remaining returns the sim seconds until a task fires.
func (s *Scheduler) Remaining(id TaskID) (float64, bool) {
	for _, t := range s.tasks {
		if t.id == id {
			return max(t.at-s.now, 0), true
		}
	}
	return 0, false
}

// Pending returns the number of scheduled callbacks.
func (s *Scheduler) Pending() int { return len(s.tasks) }

// Advance moves the clock forward and runs every callback that came due.
// Callbacks scheduled by a callback run in the same pass if already due.
func (s *Scheduler) Advance(dt float64) {
	s.now += dt
	for len(s.tasks) > 0 && s.tasks[0].at <= s.now {
		t := s.tasks[0]
		s.tasks = s.tasks[1:]
		t.fn()
	}
}

// Reset clears all tasks and sets the clock.
func (s *Scheduler) Reset(now float64) {
	s.now = now
	s.tasks = nil
}
