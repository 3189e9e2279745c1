package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/limits"
	"github.com/rvpke/kernel/src/mem"
)

func TestBetter_MallocGrowsPagesOnFirstUse(t *testing.T) {
	ram := mem.Phys_init(8, 0)
	h := NewBetter(0x20000)

	va, err := h.Malloc(ram, 16)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, uintptr(0x20000), va)
	assert.Len(t, h.Pages(), 1)
}

func TestBetter_MallocReusesFrontGapAfterFree(t *testing.T) {
	ram := mem.Phys_init(8, 0)
	h := NewBetter(0x20000)

	a, err := h.Malloc(ram, 16)
	require.Equal(t, defs.Err_t(0), err)
	b, err := h.Malloc(ram, 16)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, a+16, b)

	require.Equal(t, defs.Err_t(0), h.Free(a))

	c, err := h.Malloc(ram, 16)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, a, c, "freeing the first allocation should open a front gap Malloc reuses")
}

func TestBetter_MallocReusesInterEntryGap(t *testing.T) {
	ram := mem.Phys_init(8, 0)
	h := NewBetter(0x20000)

	a, _ := h.Malloc(ram, 16)
	b, _ := h.Malloc(ram, 16)
	c, _ := h.Malloc(ram, 16)
	require.Equal(t, defs.Err_t(0), h.Free(b))

	d, err := h.Malloc(ram, 16)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, b, d, "freeing the middle allocation should open an inter-entry gap Malloc reuses")
	_ = a
	_ = c
}

func TestBetter_MallocExtendsRearWhenNoGapFits(t *testing.T) {
	ram := mem.Phys_init(8, 0)
	h := NewBetter(0x20000)

	before := len(h.Pages())
	_, err := h.Malloc(ram, mem.PGSIZE+1)
	require.Equal(t, defs.Err_t(0), err)
	assert.Greater(t, len(h.Pages()), before, "a request bigger than one page must grow the page directory")
}

func TestBetter_MallocRespectsMaxHeapPages(t *testing.T) {
	ram := mem.Phys_init(limits.MAX_HEAP_PAGES+4, 0)
	h := NewBetter(0x20000)

	_, err := h.Malloc(ram, limits.MAX_HEAP_PAGES*mem.PGSIZE)
	require.Equal(t, defs.Err_t(0), err)

	_, err = h.Malloc(ram, mem.PGSIZE)
	assert.Equal(t, defs.ENOHEAP, err)
}

func TestBetter_MallocRespectsMaxEntries(t *testing.T) {
	ram := mem.Phys_init(limits.MAX_HEAP_PAGES, 0)
	h := NewBetter(0x20000)

	for i := 0; i < limits.MAX_MALLOC_IN_HEAP; i++ {
		_, err := h.Malloc(ram, 1)
		require.Equal(t, defs.Err_t(0), err, "alloc %d should succeed", i)
	}
	_, err := h.Malloc(ram, 1)
	assert.Equal(t, defs.ENOHEAP, err)
}

func TestBetter_MallocRejectsNonPositiveSize(t *testing.T) {
	ram := mem.Phys_init(4, 0)
	h := NewBetter(0x20000)
	_, err := h.Malloc(ram, 0)
	assert.Equal(t, defs.EINVAL, err)
}

func TestBetter_FreeUnknownVaFails(t *testing.T) {
	h := NewBetter(0x20000)
	assert.Equal(t, defs.EINVAL, h.Free(0xbad000))
}

func TestBetter_CloneCopiesBothDirectories(t *testing.T) {
	ram := mem.Phys_init(8, 0)
	h := NewBetter(0x20000)
	va, _ := h.Malloc(ram, 16)

	clone := h.Clone().(*Better_t)
	require.Equal(t, defs.Err_t(0), clone.Free(va))

	assert.Equal(t, defs.Err_t(0), h.Free(va), "freeing in the clone must not affect the original's malloc directory")
}
