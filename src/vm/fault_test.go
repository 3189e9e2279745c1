package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/mem"
)

func TestResolve_GrowsStackOnUnmappedStoreFault(t *testing.T) {
	ram := mem.Phys_init(8, 0)
	pt, _ := NewPagetable(ram)

	const va = uintptr(0x10000)
	isStack := func(addr uintptr) bool { return addr == va }

	err := Resolve(ram, pt, va, StoreFault, isStack)
	require.Equal(t, defs.Err_t(0), err)

	_, found := pt.Lookup(ram, va)
	assert.True(t, found, "stack growth must install a mapping")
}

func TestResolve_UnmappedNonStackIsEFAULT(t *testing.T) {
	ram := mem.Phys_init(8, 0)
	pt, _ := NewPagetable(ram)

	err := Resolve(ram, pt, 0x99000, StoreFault, func(uintptr) bool { return false })
	assert.Equal(t, defs.EFAULT, err)
}

func TestResolve_CowStoreFaultCopiesAndClearsFlag(t *testing.T) {
	ram := mem.Phys_init(8, 0)
	pt, _ := NewPagetable(ram)

	shared, ok := ram.AllocPage()
	require.True(t, ok)
	ram.Bytes(shared)[0] = 0x42

	const va = uintptr(0x20000)
	require.Equal(t, defs.Err_t(0), pt.Map(ram, va, shared, PTE_V|PTE_R|PTE_U|PTE_COW))

	err := Resolve(ram, pt, va, StoreFault, nil)
	require.Equal(t, defs.Err_t(0), err)

	pte, found := pt.Lookup(ram, va)
	require.True(t, found)
	assert.Zero(t, pte&PTE_COW, "resolving a CoW store fault must clear PTE_COW")
	assert.NotZero(t, pte&PTE_W, "resolved page must become writable")
	assert.NotEqual(t, shared, pte.ppn(), "resolving CoW must allocate a new physical page")
	assert.Equal(t, byte(0x42), ram.Bytes(pte.ppn())[0], "new page must carry the old contents")
}

func TestResolve_CowLoadFaultDoesNotCopy(t *testing.T) {
	ram := mem.Phys_init(8, 0)
	pt, _ := NewPagetable(ram)

	shared, _ := ram.AllocPage()
	const va = uintptr(0x30000)
	require.Equal(t, defs.Err_t(0), pt.Map(ram, va, shared, PTE_V|PTE_R|PTE_U|PTE_COW))

	err := Resolve(ram, pt, va, LoadFault, nil)
	require.Equal(t, defs.Err_t(0), err)

	pte, _ := pt.Lookup(ram, va)
	assert.NotZero(t, pte&PTE_COW, "a load fault must leave the CoW sharing intact")
	assert.Equal(t, shared, pte.ppn())
}
