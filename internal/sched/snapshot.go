package sched

// Snapshot reports the scheduler's current state for status surfaces and
// metrics. It is a point-in-time copy; the maps and slices are owned by the
// caller.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Running:      s.state == StateRunning,
		State:        s.state.String(),
		CurrentStep:  s.clock.Step(),
		CycleCount:   s.clock.Cycles(),
		StreamStates: s.clock.StreamStates(),
		PendingTasks: s.queue.Len(),
		Budget:       s.budget.Usage(),
	}
	s.mu.Unlock()

	s.hmu.Lock()
	snap.PendingHighWater = s.pendingHighWater
	snap.CompletedTasks = s.completedCount
	snap.TaskHistory = make(map[TaskType]int, len(s.perType))
	for k, v := range s.perType {
		snap.TaskHistory[k] = v
	}
	snap.Recent = make([]TaskRecord, len(s.recent))
	copy(snap.Recent, s.recent)
	s.hmu.Unlock()

	return snap
}
