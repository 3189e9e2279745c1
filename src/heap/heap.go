// Package heap implements the two user heap allocator variants: a naive
// page-granular allocator (allocate_page/free_page) and a byte-granular
// "better" allocator with ordered page and malloc directories
// (better_allocate_page/better_free_page), both from process.c.
package heap

import (
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/mem"
)

/// PageEntry_t is one VA->PA mapping the heap currently owns. Fork uses
/// this to decide what to map PTE_COW into the child (do_fork's
/// HEAP_SEGMENT case).
type PageEntry_t struct {
	Va uintptr
	Pa mem.Pa_t
}

/// Heap_i is implemented by both heap variants. base/top track the
/// heap's virtual address window; Pages lists every page currently
/// backing it so proc.Fork can CoW-map the whole heap in one pass
/// without either heap variant knowing anything about page tables.
type Heap_i interface {
	GrowPages(ram *mem.RAM_t, n int) (uintptr, defs.Err_t)
	Pages() []PageEntry_t
	Malloc(ram *mem.RAM_t, n int) (uintptr, defs.Err_t)
	Free(va uintptr) defs.Err_t
	// Clone returns a byte-for-byte copy of the heap-manager bookkeeping
	// (do_fork copies process_heap_manager verbatim into the child); the
	// physical pages themselves are shared PTE_COW by the caller.
	Clone() Heap_i
	Top() uintptr
}
