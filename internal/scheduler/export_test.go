package scheduler

// Generation returns the entry's current generation token.
func (s *Scheduler) Generation(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[id].gen
}

// Fire invokes the timer callback synchronously.
func (s *Scheduler) Fire(id string, gen uint64) {
	s.fire(id, gen)
}

// TimerArmed reports whether the entry holds a pending timer.
func (s *Scheduler) TimerArmed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[id].timer != nil
}
