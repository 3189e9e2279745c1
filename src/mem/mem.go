// Package mem models the machine's physical RAM as a single flat byte
// slice and provides the global page allocator (original pmm.c). Unlike
// the x86 teacher code this package replaces, there is no direct-map
// trick and no per-page reference counting: RAM is one Go []byte, a
// physical address is a byte offset into it, and freed pages are tracked
// on a single spinlock-protected freelist shared by both harts.
package mem

import (
	"sync"

	"github.com/rvpke/kernel/src/klog"
	"github.com/rvpke/kernel/src/limits"
	"github.com/rvpke/kernel/src/util"
)

/// Pa_t is a physical address: a byte offset into the simulated RAM slice.
type Pa_t uintptr

const (
	PGSHIFT = limits.PGSHIFT
	PGSIZE  = limits.PGSIZE
)

/// RAM_t is the machine's simulated physical memory plus its free list.
/// create_freepage_list/alloc_page/free_page/alloc_two_page from pmm.c are
/// reproduced here as Go methods operating on a byte slice instead of raw
/// pointers.
type RAM_t struct {
	mu       sync.Mutex
	bytes    []byte
	base     Pa_t
	npages   int
	free     []Pa_t // LIFO stack of free page addresses
	allocd   int
}

/// Physmem is the global physical memory allocator instance, set up once
/// by Phys_init during hart bring-up.
var Physmem *RAM_t

/// Phys_init reserves npages pages of simulated RAM starting above the
/// kernel image and returns the allocator that owns them (pmm_init).
/// kernelPages lets callers reserve a prefix of the region for fixed
/// kernel structures the way pmm_init rounds up free_mem_end_addr past
/// the kernel's own footprint.
func Phys_init(npages, kernelPages int) *RAM_t {
	total := npages + kernelPages
	ram := &RAM_t{
		bytes:  make([]byte, total*PGSIZE),
		base:   0,
		npages: total,
	}
	ram.free = make([]Pa_t, 0, npages)
	for i := kernelPages; i < total; i++ {
		ram.free = append(ram.free, Pa_t(i*PGSIZE))
	}
	Physmem = ram
	klog.Printf("mem: reserved %d pages (%d KB) for %d hart(s)\n", npages, npages*PGSIZE/1024, limits.NCPU)
	return ram
}

/// AllocPage pops a page off the free list and zeroes it (alloc_page).
/// It returns ok=false when the machine is out of physical memory; the
/// original C code spins forever under a spinlock and never observes
/// exhaustion within a test run, so callers here must check ok instead.
func (r *RAM_t) AllocPage() (Pa_t, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.free)
	if n == 0 {
		return 0, false
	}
	pa := r.free[n-1]
	r.free = r.free[:n-1]
	r.allocd++
	clear(r.bytes[pa : int(pa)+PGSIZE])
	return pa, true
}

/// AllocTwoPage scans the free list for two physically adjacent pages,
/// exactly the heuristic alloc_two_page uses: it does not compact or
/// reorder the list to create adjacency, it only recognizes adjacency
/// that already exists by coincidence. Nothing outside this package's
/// tests calls it; Fork allocates its pages one at a time.
func (r *RAM_t) AllocTwoPage() (lo, hi Pa_t, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.free {
		for j, b := range r.free {
			if i == j {
				continue
			}
			if b == a+Pa_t(PGSIZE) {
				r.removeFreeAt(max(i, j))
				r.removeFreeAt(min(i, j))
				r.allocd += 2
				clear(r.bytes[a : int(a)+2*PGSIZE])
				return a, b, true
			}
		}
	}
	return 0, 0, false
}

func (r *RAM_t) removeFreeAt(i int) {
	n := len(r.free)
	r.free[i] = r.free[n-1]
	r.free = r.free[:n-1]
}

/// FreePage pushes pa back onto the free list. It panics on a
/// misaligned or out-of-range address, matching free_page's behavior in
/// pmm.c: a bad free is a kernel bug, not a recoverable error.
func (r *RAM_t) FreePage(pa Pa_t) {
	if !util.Aligned(pa, Pa_t(PGSIZE)) {
		panic("FreePage: misaligned address")
	}
	if int(pa) < 0 || int(pa)+PGSIZE > len(r.bytes) {
		panic("FreePage: address out of range")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.free = append(r.free, pa)
	r.allocd--
}

/// Bytes returns a PGSIZE slice viewing the page at pa. The returned
/// slice aliases RAM directly; callers use it to read/write page table
/// entries and user memory without any pointer-unsafe tricks.
func (r *RAM_t) Bytes(pa Pa_t) []byte {
	return r.bytes[pa : int(pa)+PGSIZE]
}

/// Stats reports free and allocated page counts for diagnostics (the
/// disk_stat syscall reports them to user space).
func (r *RAM_t) Stats() (free, used int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.free), r.allocd
}

/// Npages returns the total number of pages this RAM holds, including
/// the kernel-reserved prefix that is never on the free list.
func (r *RAM_t) Npages() int {
	return r.npages
}
