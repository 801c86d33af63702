package schedule

import "sync"

// scopeLocks serializes writers per timetable title. Two generation runs
// for the same scope queue up on the same mutex, so the replace-all-slots
// step never interleaves; runs for different scopes do not contend.
type scopeLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{locks: make(map[string]*sync.Mutex)}
}

func (s *scopeLocks) acquire(title string) *sync.Mutex {
	s.mu.Lock()
	lock, ok := s.locks[title]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[title] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock
}
