package proc

import (
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/fd"
	"github.com/rvpke/kernel/src/mem"
	"github.com/rvpke/kernel/src/vm"
)

/// Fork creates a child of parent in the same hart's pool (do_fork): the
/// trapframe and stack are byte-copied, code stays mapped read-only and
/// shared, the heap is shared copy-on-write, and the child's syscall
/// return value is zero while the parent's is the child's pid.
func (h *Hart_t) Fork(parent *Proc) (*Proc, defs.Err_t) {
	// The heap variant passed here is irrelevant: child.Heap is replaced
	// by parent.Heap.Clone() below regardless of which allocator the
	// parent uses.
	child, err := h.AllocProcess(parent.Pid, false)
	if err != 0 {
		return nil, err
	}

	child.Trapframe = parent.Trapframe
	child.Trapframe.SetA(0, 0) // child sees fork() return 0
	child.Entry = parent.Entry
	child.Argv = append([]string(nil), parent.Argv...)
	child.Cwd = &fd.Cwd_t{Path: append([]byte(nil), parent.Cwd.Path...)}

	// STACK_SEGMENT: byte-copy every mapped stack page.
	if err := h.forkStack(parent, child); err != 0 {
		h.FreeProcess(child)
		return nil, err
	}

	// CODE_SEGMENT/DATA_SEGMENT: share code read-only, deep-copy data,
	// for every region LoadELF registered on the parent.
	if err := h.forkCodeAndData(parent, child); err != 0 {
		h.FreeProcess(child)
		return nil, err
	}

	// HEAP_SEGMENT: copy the heap-manager bookkeeping, then CoW-map
	// every backing page into the child (and flip the parent's own
	// mapping to CoW too, since it's now shared).
	child.Heap = parent.Heap.Clone()
	if err := h.forkHeapCow(parent, child); err != 0 {
		h.FreeProcess(child)
		return nil, err
	}

	return child, 0
}

func (h *Hart_t) forkStack(parent, child *Proc) defs.Err_t {
	child.StackTop = parent.StackTop
	child.StackBottom = parent.StackBottom
	for va := parent.StackBottom; va < parent.StackTop; va += uintptr(mem.PGSIZE) {
		pte, ok := parent.Pagetable.Lookup(h.Ram, va)
		if !ok {
			continue
		}
		pa, ok := h.Ram.AllocPage()
		if !ok {
			return defs.ENOMEM
		}
		copy(h.Ram.Bytes(pa), h.Ram.Bytes(pte.PPN()))
		if err := child.Pagetable.Map(h.Ram, va, pa, vm.ProtToType(vm.PROT_READ|vm.PROT_WRITE, true)); err != 0 {
			return err
		}
	}
	return 0
}

// forkCodeAndData propagates every CODE_SEGMENT/DATA_SEGMENT region
// LoadELF registered on the parent (do_fork's mapped_info walk): CODE
// pages are mapped into the child at the same PA with the parent's own
// flags, since instructions are never mutated and sharing them is safe;
// DATA pages are byte-copied into fresh pages, since a process may write
// its own globals and must not see a sibling's writes.
func (h *Hart_t) forkCodeAndData(parent, child *Proc) defs.Err_t {
	for _, region := range parent.Mapped {
		if region.Kind != defs.CODE_SEGMENT && region.Kind != defs.DATA_SEGMENT {
			continue
		}
		for i := 0; i < region.Npages; i++ {
			va := region.Va + uintptr(i*mem.PGSIZE)
			pte, ok := parent.Pagetable.Lookup(h.Ram, va)
			if !ok {
				continue
			}
			pa := pte.PPN()
			if region.Kind == defs.DATA_SEGMENT {
				newpa, ok := h.Ram.AllocPage()
				if !ok {
					return defs.ENOMEM
				}
				copy(h.Ram.Bytes(newpa), h.Ram.Bytes(pa))
				pa = newpa
			}
			if err := child.Pagetable.Map(h.Ram, va, pa, pte.Flags()); err != 0 {
				return err
			}
		}
		child.Mapped = append(child.Mapped, region)
	}
	return 0
}

func (h *Hart_t) forkHeapCow(parent, child *Proc) defs.Err_t {
	for _, pg := range parent.Heap.Pages() {
		flags := vm.PTE_V | vm.PTE_R | vm.PTE_U | vm.PTE_COW
		if err := parent.Pagetable.SetFlags(h.Ram, pg.Va, flags); err != 0 {
			return err
		}
		if err := child.Pagetable.Map(h.Ram, pg.Va, pg.Pa, flags); err != 0 {
			return err
		}
	}
	return 0
}
