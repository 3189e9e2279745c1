package proc

import (
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/fd"
	"github.com/rvpke/kernel/src/heap"
	"github.com/rvpke/kernel/src/mem"
	"github.com/rvpke/kernel/src/vm"
)

// Address space layout. Real PKE lays CODE/DATA/HEAP/STACK/CONTEXT/SYSTEM
// out by ELF segment; since user programs here are Go closures rather
// than compiled instruction streams (see Userprog_t), CODE/DATA is the
// elf package's concern when an exec target actually has an ELF image,
// and these constants only fix the HEAP and STACK windows every process
// gets regardless.
const (
	HeapBase       uintptr = 0x10000000
	StackTop       uintptr = 0x80000000
	StackInitPages         = 1
)

/// AllocProcess installs a new process into the first FREE slot of h's
/// pool (alloc_process): it allocates a page table, maps an initial
/// stack page, and wires up a fresh heap at HeapBase: a naive heap, or a
/// better heap when useBetterHeap is set. A process always carries both
/// tables in the source (process_heap_manager plus the page/malloc
/// directories) but in practice only one API is exercised per process,
/// so only the one the caller asks for is created.
func (h *Hart_t) AllocProcess(parent defs.Tid_t, useBetterHeap bool) (*Proc, defs.Err_t) {
	h.mu.Lock()
	defer h.mu.Unlock()

	slot := -1
	for i, p := range h.Procs {
		if p == nil || p.Status == defs.FREE {
			slot = i
			break
		}
	}
	if slot == -1 {
		return nil, defs.EAGAIN
	}

	pt, err := vm.NewPagetable(h.Ram)
	if err != 0 {
		return nil, err
	}

	p := &Proc{
		Pid:        defs.Tid_t(h.Id<<16 + h.nextPid),
		ParentPid:  parent,
		Hartid:     h.Id,
		Status:     defs.READY,
		Pagetable:  pt,
		SemIndex:   -1,
		WaitingPid: -1,
		Cwd:        fd.MkRootCwd(),
	}
	h.nextPid++

	stackBottom := StackTop - uintptr(StackInitPages*mem.PGSIZE)
	pa, ok := h.Ram.AllocPage()
	if !ok {
		return nil, defs.ENOMEM
	}
	if err := pt.Map(h.Ram, stackBottom, pa, vm.ProtToType(vm.PROT_READ|vm.PROT_WRITE, true)); err != 0 {
		return nil, err
	}
	p.StackTop = StackTop
	p.StackBottom = stackBottom
	p.Mapped = append(p.Mapped, MappedRegion_t{Va: stackBottom, Npages: StackInitPages, Kind: defs.STACK_SEGMENT})

	if useBetterHeap {
		p.Heap = heap.NewBetter(HeapBase)
	} else {
		p.Heap = heap.NewNaive(HeapBase)
	}
	p.Mapped = append(p.Mapped, MappedRegion_t{Va: HeapBase, Npages: 0, Kind: defs.HEAP_SEGMENT})

	h.Procs[slot] = p
	return p, 0
}

/// FreeProcess marks p ZOMBIE and clears its queue link. It does not
/// tear down p's heap (the page and malloc directories stay as they
/// are, and their pages are not returned to the allocator), and it does
/// not reclaim p's address space mappings: the page table stays intact
/// after the parent reaps the zombie via wait.
func (h *Hart_t) FreeProcess(p *Proc) {
	p.Lock()
	defer p.Unlock()
	p.Status = defs.ZOMBIE
	p.QueueNext = nil
}

/// ReclaimProcess fully clears a zombie's slot once its parent has
/// collected its exit status (the final step do_wait performs after
/// finding a ZOMBIE child).
func (h *Hart_t) ReclaimProcess(p *Proc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, q := range h.Procs {
		if q == p {
			h.Procs[i] = nil
		}
	}
	p.Status = defs.FREE
}

/// ProcByPid finds a process in h's pool by pid, or nil.
func (h *Hart_t) ProcByPid(pid defs.Tid_t) *Proc {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.Procs {
		if p != nil && p.Pid == pid {
			return p
		}
	}
	return nil
}
