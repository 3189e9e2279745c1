// Package proc implements the process table, address-space layout, and
// fork/exec/wait/exit lifecycle (original process.c). Each hart owns an
// independent NPROC-sized pool; processes never migrate between harts.
package proc

import (
	"sync"

	"github.com/rvpke/kernel/src/accnt"
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/fd"
	"github.com/rvpke/kernel/src/heap"
	"github.com/rvpke/kernel/src/limits"
	"github.com/rvpke/kernel/src/mem"
	"github.com/rvpke/kernel/src/vm"
)

/// Trapframe_t holds the saved user register state across a trap. a0-a7
/// (Regs[10:18]) carry syscall arguments and the a7 syscall number the
/// way the RISC-V calling convention does in strap.c's handle_syscall.
type Trapframe_t struct {
	Regs [32]uint64
	Epc  uint64
}

func (tf *Trapframe_t) A(n int) uint64     { return tf.Regs[10+n] }
func (tf *Trapframe_t) SetA(n int, v uint64) { tf.Regs[10+n] = v }

/// MappedRegion_t records one VA range a process has mapped, tagged with
/// the segment kind do_fork switches on to decide how to propagate it to
/// a child (mapped_info_t in process.h).
type MappedRegion_t struct {
	Va     uintptr
	Npages int
	Kind   defs.Segtype_t
}

/// Userprog_t is the hosted-simulator stand-in for a compiled RISC-V
/// instruction stream: user programs are Go closures that call into Proc
/// methods to issue syscalls, rather than ecall instructions trapped by
/// an ISA interpreter. Entry receives the process so it can inspect argv
/// and issue syscalls against itself.
type Userprog_t func(p *Proc)

/// Proc is one process table entry. Only one hart's scheduler ever
/// touches a given Proc, so the mutex guards fields syscalls from other
/// harts might race on (none today) rather than cross-hart access; it
/// exists mainly to match the teacher's convention of every shared
/// struct embedding its own lock.
type Proc struct {
	sync.Mutex

	Pid       defs.Tid_t
	ParentPid defs.Tid_t
	Hartid    int
	Status    defs.Procstate_t

	Trapframe Trapframe_t
	Pagetable *vm.Pagetable_t

	Mapped []MappedRegion_t
	Heap   heap.Heap_i

	StackTop    uintptr
	StackBottom uintptr

	// Cwd is the process's current working directory, the backing store
	// for the rcwd/ccwd syscalls (fd.Cwd_t). Fork clones it; exec leaves
	// it untouched, matching POSIX exec's cwd-preservation convention.
	Cwd *fd.Cwd_t

	// WaitingPid is the pid wait() last blocked on, or -1 when p is not
	// blocked waiting for a child (spec's "-1 when not waiting"). Pid 0
	// is a real, reachable pid (a hart's first-allocated process), so the
	// wake scan must never treat it as the sentinel.
	WaitingPid defs.Tid_t
	ExitCode   int

	SemIndex int // which semaphore this proc is blocked on, -1 if none

	Entry Userprog_t
	Argv  []string

	// Accnt tracks how much user and system time this process has
	// consumed; the timer tick adds to it. Wait does not report it back
	// to the parent.
	Accnt accnt.Accnt_t

	// QueueNext links this Proc into exactly one of its hart's ready or
	// blocked intrusive singly-linked queues (insert_to_ready_queue /
	// insert_to_blocked_queue). nil means not queued.
	QueueNext *Proc
}

/// Hart_t owns one NCPU-indexed process pool, the hart's simulated RAM
/// view, and its current-process pointer -- the replacement for the
/// teacher's tinfo goroutine-local-storage trick, which depends on a
/// patched Go runtime we don't have. A plain struct field is the
/// idiomatic stand-in: each hart is already modeled as one goroutine, so
/// "current process" is just that goroutine's local state.
type Hart_t struct {
	mu sync.Mutex

	Id      int
	Ram     *mem.RAM_t
	Procs   [limits.NPROC]*Proc
	Current *Proc

	ReadyHead, ReadyTail     *Proc
	BlockedHead, BlockedTail *Proc

	Semaphores [limits.MAX_SEMAPHORE_NUM]*Semaphore_t

	nextPid int
}

/// Semaphore_t is a counting semaphore with an explicit mutex. The
/// source's global semaphore table (add_to_semaphores/P_semaphore/
/// V_semaphore in sched.c) has no lock at all -- two harts racing on
/// sem_new or P/V can corrupt the counter. We add the lock the design
/// notes call out as a required fix; the wait/wake protocol otherwise
/// matches the source exactly.
type Semaphore_t struct {
	sync.Mutex
	count int
	inuse bool
}

/// Inuse reports whether this slot holds a live semaphore. Callers must
/// hold the semaphore's lock.
func (s *Semaphore_t) Inuse() bool { return s.inuse }

/// Init (re)initializes the slot to value and marks it in use. Callers
/// must hold the semaphore's lock.
func (s *Semaphore_t) Init(value int) {
	s.inuse = true
	s.count = value
}

/// Take decrements the count if positive, reporting whether it
/// succeeded. Callers must hold the semaphore's lock.
func (s *Semaphore_t) Take() bool {
	if s.count <= 0 {
		return false
	}
	s.count--
	return true
}

/// Give increments the count by one. Callers must hold the semaphore's
/// lock.
func (s *Semaphore_t) Give() {
	s.count++
}

/// NewHart allocates an empty process pool bound to ram.
func NewHart(id int, ram *mem.RAM_t) *Hart_t {
	h := &Hart_t{Id: id, Ram: ram}
	for i := range h.Semaphores {
		h.Semaphores[i] = &Semaphore_t{}
	}
	return h
}
