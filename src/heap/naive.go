package heap

import (
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/limits"
	"github.com/rvpke/kernel/src/mem"
)

/// Naive_t is the page-granular heap: grow always extends at the top,
/// free always pushes the freed page onto a LIFO stack, and the next
/// grow reuses the most recently freed page before extending further.
/// This mirrors the source's free_pages_address/free_pages_count array
/// used as a stack inside process_heap_manager.
type Naive_t struct {
	base  uintptr
	top   uintptr
	pages map[uintptr]mem.Pa_t // va -> pa, currently resident pages
	free  []uintptr            // LIFO stack of freed page VAs, capacity MAX_HEAP_PAGES
}

/// NewNaive creates an empty naive heap starting at base.
func NewNaive(base uintptr) *Naive_t {
	return &Naive_t{base: base, top: base, pages: make(map[uintptr]mem.Pa_t)}
}

func (h *Naive_t) Top() uintptr { return h.top }

func (h *Naive_t) Pages() []PageEntry_t {
	out := make([]PageEntry_t, 0, len(h.pages))
	for va, pa := range h.pages {
		out = append(out, PageEntry_t{Va: va, Pa: pa})
	}
	return out
}

/// GrowPages allocates n fresh pages, preferring ones on the free stack
/// before extending top, and returns the VA of the first page allocated.
func (h *Naive_t) GrowPages(ram *mem.RAM_t, n int) (uintptr, defs.Err_t) {
	if n <= 0 {
		return 0, defs.EINVAL
	}
	first := uintptr(0)
	for i := 0; i < n; i++ {
		var va uintptr
		if len(h.free) > 0 {
			va = h.free[len(h.free)-1]
			h.free = h.free[:len(h.free)-1]
		} else {
			if len(h.pages)+1 > limits.MAX_HEAP_PAGES {
				return 0, defs.ENOHEAP
			}
			va = h.top
			h.top += uintptr(mem.PGSIZE)
		}
		pa, ok := ram.AllocPage()
		if !ok {
			return 0, defs.ENOMEM
		}
		h.pages[va] = pa
		if i == 0 {
			first = va
		}
	}
	return first, 0
}

/// Malloc is not supported by the naive heap; byte-granular allocation
/// is the better heap's job. The naive heap only ever hands out whole
/// pages via GrowPages (the allocate_page syscall).
func (h *Naive_t) Malloc(ram *mem.RAM_t, n int) (uintptr, defs.Err_t) {
	return 0, defs.EINVAL
}

/// Free pushes the page at va back onto the free stack (free_page).
func (h *Naive_t) Free(va uintptr) defs.Err_t {
	if _, ok := h.pages[va]; !ok {
		return defs.EINVAL
	}
	delete(h.pages, va)
	h.free = append(h.free, va)
	return 0
}

/// Clone copies the heap-manager bookkeeping for a forked child; the
/// physical pages are not duplicated here, the caller CoW-maps them.
func (h *Naive_t) Clone() Heap_i {
	c := &Naive_t{base: h.base, top: h.top, pages: make(map[uintptr]mem.Pa_t, len(h.pages))}
	for va, pa := range h.pages {
		c.pages[va] = pa
	}
	c.free = append(c.free, h.free...)
	return c
}
