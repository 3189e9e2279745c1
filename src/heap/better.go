package heap

import (
	"sort"

	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/limits"
	"github.com/rvpke/kernel/src/mem"
	"github.com/rvpke/kernel/src/util"
)

/// mallocEntry_t is one live allocation inside the heap's mapped page
/// range (malloc_dentry in process.h).
type mallocEntry_t struct {
	VaStart, VaEnd uintptr
}

/// Better_t is the byte-granular heap: an ordered page directory backs
/// the VA range with whole pages, and an ordered malloc directory
/// carves byte ranges out of it. Both directories stay sorted ascending
/// by VA at all times, the same invariant sort_page_dir/sort_malloc_dir
/// maintain in process.c (there by bubble sort after every insert; here
/// the page directory is re-sorted with sort.Slice after it grows, and a
/// malloc entry is inserted at its sorted position directly).
type Better_t struct {
	base      uintptr
	top       uintptr // one past the last mapped page's end VA
	pageDir   []PageEntry_t
	mallocDir []mallocEntry_t
}

/// NewBetter creates an empty better heap starting at base.
func NewBetter(base uintptr) *Better_t {
	return &Better_t{base: base, top: base}
}

func (h *Better_t) Top() uintptr { return h.top }

func (h *Better_t) Pages() []PageEntry_t {
	out := make([]PageEntry_t, len(h.pageDir))
	copy(out, h.pageDir)
	return out
}

// growPages extends the page directory by n pages, keeping it sorted
// (alloc_n_page + add_to_page_dir + sort_page_dir).
func (h *Better_t) growPages(ram *mem.RAM_t, n int) defs.Err_t {
	if len(h.pageDir)+n > limits.MAX_HEAP_PAGES {
		return defs.ENOHEAP
	}
	for i := 0; i < n; i++ {
		pa, ok := ram.AllocPage()
		if !ok {
			return defs.ENOMEM
		}
		h.pageDir = append(h.pageDir, PageEntry_t{Va: h.top, Pa: pa})
		h.top += uintptr(mem.PGSIZE)
	}
	sort.Slice(h.pageDir, func(i, j int) bool { return h.pageDir[i].Va < h.pageDir[j].Va })
	return 0
}

/// GrowPages is the page-granular entry point shared with the Heap_i
/// interface; the better heap uses it only to pre-extend its backing
/// pages without carving a malloc_dentry, unlike Malloc.
func (h *Better_t) GrowPages(ram *mem.RAM_t, n int) (uintptr, defs.Err_t) {
	before := h.top
	if err := h.growPages(ram, n); err != 0 {
		return 0, err
	}
	return before, 0
}

func (h *Better_t) insertMalloc(e mallocEntry_t) {
	i := sort.Search(len(h.mallocDir), func(i int) bool { return h.mallocDir[i].VaStart >= e.VaStart })
	h.mallocDir = append(h.mallocDir, mallocEntry_t{})
	copy(h.mallocDir[i+1:], h.mallocDir[i:])
	h.mallocDir[i] = e
}

/// Malloc implements do_better_malloc's three-phase search: a front gap
/// before the first live allocation, an inter-entry gap between two
/// live allocations, and finally a rear extension that grows the page
/// directory just enough to satisfy the request.
func (h *Better_t) Malloc(ram *mem.RAM_t, n int) (uintptr, defs.Err_t) {
	if n <= 0 {
		return 0, defs.EINVAL
	}
	if len(h.mallocDir) >= limits.MAX_MALLOC_IN_HEAP {
		return 0, defs.ENOHEAP
	}
	want := uintptr(n)

	if len(h.pageDir) > 0 {
		frontLimit := h.top
		if len(h.mallocDir) > 0 {
			frontLimit = h.mallocDir[0].VaStart
		}
		if frontLimit-h.pageDir[0].Va >= want {
			va := h.pageDir[0].Va
			h.insertMalloc(mallocEntry_t{va, va + want})
			return va, 0
		}
	}

	for i := 0; i+1 < len(h.mallocDir); i++ {
		gap := h.mallocDir[i+1].VaStart - h.mallocDir[i].VaEnd
		if gap >= want {
			va := h.mallocDir[i].VaEnd
			h.insertMalloc(mallocEntry_t{va, va + want})
			return va, 0
		}
	}

	rearStart := h.base
	if len(h.mallocDir) > 0 {
		rearStart = h.mallocDir[len(h.mallocDir)-1].VaEnd
	} else if len(h.pageDir) > 0 {
		rearStart = h.pageDir[0].Va
	}
	avail := h.top - rearStart
	if avail < want {
		need := want - avail
		pages := int(util.Roundup(need, uintptr(mem.PGSIZE)) / uintptr(mem.PGSIZE))
		if err := h.growPages(ram, pages); err != 0 {
			return 0, err
		}
	}
	h.insertMalloc(mallocEntry_t{rearStart, rearStart + want})
	return rearStart, 0
}

/// Free removes the malloc_dentry starting at va (do_better_free);
/// pages backing it stay mapped and are not returned to the physical
/// allocator, not even when the process exits.
func (h *Better_t) Free(va uintptr) defs.Err_t {
	for i, e := range h.mallocDir {
		if e.VaStart == va {
			h.mallocDir = append(h.mallocDir[:i], h.mallocDir[i+1:]...)
			return 0
		}
	}
	return defs.EINVAL
}

/// Clone copies both directories verbatim (do_fork's heap-manager
/// struct copy); the caller is responsible for CoW-mapping the pages
/// listed in Pages() into the child's address space.
func (h *Better_t) Clone() Heap_i {
	c := &Better_t{base: h.base, top: h.top}
	c.pageDir = append(c.pageDir, h.pageDir...)
	c.mallocDir = append(c.mallocDir, h.mallocDir...)
	return c
}
