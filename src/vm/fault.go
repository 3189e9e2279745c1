package vm

import (
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/mem"
)

/// FaultKind distinguishes why the trap handler invoked the fault
/// resolver, mirroring strap.c's STORE_PAGE_FAULT/LOAD_PAGE_FAULT split.
type FaultKind int

const (
	LoadFault FaultKind = iota
	StoreFault
)

/// Resolve handles a page fault at va. Two cases reach it:
//
//   - no mapping at all: this is lazy stack growth (or a genuinely bad
//     access, which returns EFAULT for the caller to kill the process).
//   - a mapping exists but is PTE_COW and the fault was a store: this is
//     the copy-on-write resolution from do_fork's HEAP_SEGMENT handling.
//     A load fault on a CoW page leaves the sharing in place; only a
//     write breaks it.
//
// isStackRegion lets the caller (proc) tell Resolve whether va falls
// inside the process's growable stack region, since vm itself has no
// notion of segments.
func Resolve(ram *mem.RAM_t, pt *Pagetable_t, va uintptr, kind FaultKind, isStackRegion func(uintptr) bool) defs.Err_t {
	pte, ok := pt.Lookup(ram, va)
	if !ok {
		if kind == StoreFault && isStackRegion != nil && isStackRegion(va) {
			return growStack(ram, pt, va)
		}
		return defs.EFAULT
	}

	if pte&PTE_COW == 0 {
		return defs.EFAULT
	}
	if kind != StoreFault {
		// Loads may read through a CoW mapping untouched.
		return 0
	}
	return resolveCow(ram, pt, va, pte)
}

func growStack(ram *mem.RAM_t, pt *Pagetable_t, va uintptr) defs.Err_t {
	pa, ok := ram.AllocPage()
	if !ok {
		return defs.ENOMEM
	}
	pageva := va &^ uintptr(mem.PGSIZE-1)
	return pt.Map(ram, pageva, pa, ProtToType(PROT_READ|PROT_WRITE, true))
}

// resolveCow implements the CoW half of Sys_pgfault: copy the shared
// page into a fresh one the faulting process owns, then mark it
// writable and no longer CoW. The source's optimization of reclaiming
// a CoW page in place when it is the last owner requires refcounting
// mem.RAM_t does not keep (pages are tracked only as free/allocated),
// so this copies unconditionally; it is always correct, only not always
// minimal.
func resolveCow(ram *mem.RAM_t, pt *Pagetable_t, va uintptr, pte Pte_t) defs.Err_t {
	pageva := va &^ uintptr(mem.PGSIZE-1)
	newpa, ok := ram.AllocPage()
	if !ok {
		return defs.ENOMEM
	}
	copy(ram.Bytes(newpa), ram.Bytes(pte.ppn()))
	// The faulting VA is already validly mapped (to the shared CoW page);
	// Map's double-map check would treat remapping it as corruption, so
	// clear the old translation first the way a real TLB shootdown would
	// before installing the private copy.
	pt.Unmap(ram, pageva)
	return pt.Map(ram, pageva, newpa, ProtToType(PROT_READ|PROT_WRITE, true)|PTE_A|PTE_D)
}
