package sched

import (
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/proc"
)

/// NewSemaphore allocates a semaphore slot initialized to value
/// (add_to_semaphores) and returns its index, or EAGAIN if the table is
/// full. Unlike the source's unsynchronized global table, every access
/// here goes through the semaphore's own mutex -- the fix the design
/// notes call out as required once two harts can call sem_new/P/V
/// concurrently.
func NewSemaphore(h *proc.Hart_t, value int) (int, defs.Err_t) {
	for i, s := range h.Semaphores {
		s.Lock()
		if !s.Inuse() {
			s.Init(value)
			s.Unlock()
			return i, 0
		}
		s.Unlock()
	}
	return -1, defs.EAGAIN
}

/// P decrements the semaphore at index if its count is positive,
/// otherwise blocks the calling process on it (P_semaphore). The caller
/// is responsible for calling Schedule afterward when blocked=true.
func P(h *proc.Hart_t, p *proc.Proc, index int) (blocked bool, err defs.Err_t) {
	if index < 0 || index >= len(h.Semaphores) {
		return false, defs.EINVAL
	}
	s := h.Semaphores[index]
	s.Lock()
	defer s.Unlock()
	if !s.Inuse() {
		return false, defs.EINVAL
	}
	if s.Take() {
		return false, 0
	}
	p.SemIndex = index
	p.WaitingPid = -1
	FromReadyToBlocked(h, p)
	return true, 0
}

/// V increments the semaphore at index, then wakes any single process
/// blocked on it (V_semaphore's wake-scan over the blocked queue).
func V(h *proc.Hart_t, index int) defs.Err_t {
	if index < 0 || index >= len(h.Semaphores) {
		return defs.EINVAL
	}
	s := h.Semaphores[index]
	s.Lock()
	if !s.Inuse() {
		s.Unlock()
		return defs.EINVAL
	}
	s.Give()
	s.Unlock()

	for q := h.BlockedHead; q != nil; q = q.QueueNext {
		if q.SemIndex == index {
			s.Lock()
			ok := s.Take()
			s.Unlock()
			if ok {
				q.SemIndex = -1
				FromBlockedToReady(h, q)
			}
			return 0
		}
	}
	return 0
}
