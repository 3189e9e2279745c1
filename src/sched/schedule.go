package sched

import (
	"github.com/rvpke/kernel/src/caller"
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/oommsg"
	"github.com/rvpke/kernel/src/proc"
	"github.com/rvpke/kernel/src/stats"
)

/// Dispatches counts how many times Schedule has handed the CPU to a
/// process, across every hart. Compiles to a no-op unless stats.Stats is
/// enabled.
var Dispatches stats.Counter_t

/// Shutdown is returned by Schedule when a hart's entire process pool is
/// FREE or ZOMBIE: there is nothing left to run (schedule()'s shutdown
/// branch).
type Shutdown struct{}

func (Shutdown) Error() string { return "hart has no runnable process left" }

/// Schedule implements schedule()'s three steps: wake any blocked
/// waiter whose target pid has become a ZOMBIE, then either dispatch the
/// ready queue's head or detect shutdown, panicking if the ready queue
/// is empty while some process is neither FREE nor ZOMBIE, blocked ones
/// included (a scheduling invariant violation in the source too).
func Schedule(h *proc.Hart_t) (*proc.Proc, error) {
	wakeWaiters(h)

	next := PopReady(h)
	if next == nil {
		if allDone(h) {
			oommsg.Broadcast()
			return nil, Shutdown{}
		}
		caller.Fatalf("hart %d: ready queue empty but processes remain", h.Id)
	}
	next.Status = defs.RUNNING
	h.Current = next
	Dispatches.Inc()
	return next, nil
}

func wakeWaiters(h *proc.Hart_t) {
	for q := h.BlockedHead; q != nil; {
		next := q.QueueNext
		if q.WaitingPid >= 0 {
			if target := h.ProcByPid(q.WaitingPid); target == nil || target.Status == defs.ZOMBIE {
				q.WaitingPid = -1
				FromBlockedToReady(h, q)
			}
		}
		q = next
	}
}

func allDone(h *proc.Hart_t) bool {
	for _, p := range h.Procs {
		if p == nil {
			continue
		}
		if p.Status != defs.FREE && p.Status != defs.ZOMBIE {
			return false
		}
	}
	return true
}

/// Yield puts the calling process back at the ready queue's tail and
/// picks the next one to run (rrsched's tick-exhausted branch, using
/// FromReadyToReady per the explicit choice over the source's blocked-
/// queue bug).
func Yield(h *proc.Hart_t, p *proc.Proc) (*proc.Proc, error) {
	FromReadyToReady(h, p)
	return Schedule(h)
}
