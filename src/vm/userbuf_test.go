package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvpke/kernel/src/mem"
)

func setupMappedRange(t *testing.T, ram *mem.RAM_t, pt *Pagetable_t, va uintptr, pages int) {
	t.Helper()
	for i := 0; i < pages; i++ {
		pa, ok := ram.AllocPage()
		require.True(t, ok)
		require.Zero(t, pt.Map(ram, va+uintptr(i*mem.PGSIZE), pa, PTE_V|PTE_R|PTE_W|PTE_U))
	}
}

func TestUioread_WithinSinglePage(t *testing.T) {
	ram := mem.Phys_init(8, 0)
	pt, _ := NewPagetable(ram)
	const va = uintptr(0x1000)
	setupMappedRange(t, ram, pt, va, 1)

	page, _, err := (&Userbuf_t{ram: ram, pt: pt, va: va, len: mem.PGSIZE}).pagechunk()
	require.Zero(t, err)
	copy(page, []byte("hello"))

	ub := MkUserbuf(ram, pt, va, 5)
	dst := make([]byte, 5)
	n, rerr := ub.Uioread(dst)
	require.Zero(t, rerr)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(dst))
	assert.Equal(t, 0, ub.Remain())
}

func TestUiowrite_SpansPageBoundary(t *testing.T) {
	ram := mem.Phys_init(8, 0)
	pt, _ := NewPagetable(ram)
	const va = uintptr(0x2000)
	setupMappedRange(t, ram, pt, va, 2)

	src := make([]byte, mem.PGSIZE+10)
	for i := range src {
		src[i] = byte(i)
	}

	ub := MkUserbuf(ram, pt, va, len(src))
	n, err := ub.Uiowrite(src)
	require.Zero(t, err)
	assert.Equal(t, len(src), n)

	ub2 := MkUserbuf(ram, pt, va, len(src))
	dst := make([]byte, len(src))
	n2, err2 := ub2.Uioread(dst)
	require.Zero(t, err2)
	assert.Equal(t, len(src), n2)
	assert.Equal(t, src, dst)
}

func TestUioread_FaultsOnUnmappedVa(t *testing.T) {
	ram := mem.Phys_init(4, 0)
	pt, _ := NewPagetable(ram)

	ub := MkUserbuf(ram, pt, 0xdead000, 8)
	dst := make([]byte, 8)
	_, err := ub.Uioread(dst)
	assert.NotZero(t, err)
}
