package proc

import (
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/heap"
	"github.com/rvpke/kernel/src/mem"
	"github.com/rvpke/kernel/src/vm"
)

/// Exec replaces p's program in place (do_exec): the old address space
/// is cleared and a fresh stack and heap are installed, then prog
/// becomes the process's new instruction stream. Unlike fork, exec never
/// allocates a new process table slot.
func (h *Hart_t) Exec(p *Proc, prog Userprog_t, argv []string, useBetterHeap bool) defs.Err_t {
	p.Lock()
	defer p.Unlock()

	pt, err := vm.NewPagetable(h.Ram)
	if err != 0 {
		return err
	}
	p.Pagetable = pt
	p.Mapped = p.Mapped[:0]

	stackBottom := StackTop - uintptr(StackInitPages*mem.PGSIZE)
	pa, ok := h.Ram.AllocPage()
	if !ok {
		return defs.ENOMEM
	}
	if err := pt.Map(h.Ram, stackBottom, pa, vm.ProtToType(vm.PROT_READ|vm.PROT_WRITE, true)); err != 0 {
		return err
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

	p.Entry = prog
	p.Argv = argv
	p.Trapframe = Trapframe_t{}
	p.Status = defs.READY
	p.WaitingPid = -1
	return 0
}
