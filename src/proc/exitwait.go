package proc

import "github.com/rvpke/kernel/src/defs"

/// Exit marks p as ZOMBIE with the given exit code. Its address space
/// stays mapped until a parent collects it with Wait (free_process).
func (h *Hart_t) Exit(p *Proc, code int) {
	p.Lock()
	p.ExitCode = code
	p.Unlock()
	h.FreeProcess(p)
}

/// Wait implements do_wait's pid semantics:
//
//   - pid == -1: any ZOMBIE child is reaped immediately and its slot
//     freed in the same call; if no child is currently a zombie but at
//     least one exists, Wait returns EAGAIN and the caller blocks
//     (sysWait moves it to the blocked queue).
//   - pid >= 0: wait for that specific child; same immediate-reap rule.
//   - otherwise: no matching child exists at all, returns ECHILD.
// Wait returns, on EAGAIN, the concrete pid the caller should block on:
// the requested pid when pid >= 0, or the first non-FREE child found when
// pid == -1 ("wait for any"). waiting_pid itself is never -1 while a
// process is genuinely blocked (-1 is the "not waiting" sentinel), so
// "wait for any" must resolve to one concrete child before the caller
// blocks, matching §4.8's "pick the first non-FREE child as the awaited
// one."
func (h *Hart_t) Wait(parent *Proc, pid defs.Tid_t) (defs.Tid_t, int, defs.Err_t) {
	h.mu.Lock()
	defer h.mu.Unlock()

	foundAny := false
	awaited := defs.Tid_t(-1)
	for _, c := range h.Procs {
		if c == nil || c == parent || c.ParentPid != parent.Pid {
			continue
		}
		if pid >= 0 && c.Pid != pid {
			continue
		}
		foundAny = true
		if c.Status == defs.ZOMBIE {
			code := c.ExitCode
			cpid := c.Pid
			for i, q := range h.Procs {
				if q == c {
					h.Procs[i] = nil
				}
			}
			c.Status = defs.FREE
			return cpid, code, 0
		}
		if awaited < 0 {
			awaited = c.Pid
		}
	}
	if !foundAny {
		return -1, 0, defs.ECHILD
	}
	return awaited, 0, defs.EAGAIN
}

/// WaitBlocks reports whether parent has at least one living (non-ZOMBIE,
/// non-FREE) child matching pid, meaning Wait should block rather than
/// fail -- the condition do_wait checks before calling
/// from_ready_to_blocked + schedule().
func (h *Hart_t) WaitBlocks(parent *Proc, pid defs.Tid_t) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.Procs {
		if c == nil || c == parent || c.ParentPid != parent.Pid {
			continue
		}
		if pid >= 0 && c.Pid != pid {
			continue
		}
		if c.Status != defs.FREE && c.Status != defs.ZOMBIE {
			return true
		}
	}
	return false
}
