package trap

import (
	"github.com/rvpke/kernel/src/limits"
	"github.com/rvpke/kernel/src/sched"
)

/// Tick handles one timer interrupt (handle_mtimer_trap + rrsched). Hart
/// 1 logs a line every 60 ticks the way the source prints a minute
/// marker; every hart charges the tick to its current process and, on
/// every TIME_SLICE_LEN-th tick of the hart's own counter (m.Ticks),
/// yields that process. There is no per-process tick count: a process
/// dispatched mid-slice is yielded at the next multiple of
/// TIME_SLICE_LEN, not after TIME_SLICE_LEN ticks of its own.
func (m *Machine) Tick() {
	m.Ticks++
	if m.Hart.Id == 1 && m.Ticks%60 == 0 && m.Console != nil {
		m.Console.Tickf(m.Ticks / 60)
	}
	cur := m.Hart.Current
	if cur == nil {
		return
	}
	cur.Accnt.Utadd(tickNanos)
	if m.Ticks%limits.TIME_SLICE_LEN == 0 {
		sched.Yield(m.Hart, cur)
	}
}

// tickNanos is the simulated duration of one timer tick, used only to
// give Accnt.Utadd a plausible unit; the hosted simulator has no real
// wall clock to read per instruction.
const tickNanos = 1_000_000

