package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/elf"
	"github.com/rvpke/kernel/src/mem"
	"github.com/rvpke/kernel/src/vm"
)

func TestFork_ChildSeesZeroReturn(t *testing.T) {
	h := newTestHart(t)
	parent, _ := h.AllocProcess(0, false)
	parent.Trapframe.SetA(0, 0xdead)

	child, err := h.Fork(parent)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, uint64(0), child.Trapframe.A(0), "fork's child must see a0=0")
	assert.Equal(t, parent.Pid, child.ParentPid)
	assert.NotEqual(t, parent.Pid, child.Pid)
}

func TestFork_StackIsByteCopiedNotShared(t *testing.T) {
	h := newTestHart(t)
	parent, _ := h.AllocProcess(0, false)

	ppte, ok := parent.Pagetable.Lookup(h.Ram, parent.StackBottom)
	require.True(t, ok)
	h.Ram.Bytes(ppte.PPN())[0] = 0x55

	child, err := h.Fork(parent)
	require.Equal(t, defs.Err_t(0), err)

	ppte, _ = parent.Pagetable.Lookup(h.Ram, parent.StackBottom)
	cpte, ok := child.Pagetable.Lookup(h.Ram, child.StackBottom)
	require.True(t, ok)
	assert.NotEqual(t, ppte.PPN(), cpte.PPN(), "stack pages must be independent copies")
	assert.Equal(t, h.Ram.Bytes(ppte.PPN())[0], h.Ram.Bytes(cpte.PPN())[0], "contents must match right after fork")

	h.Ram.Bytes(cpte.PPN())[0] = 0x77
	assert.NotEqual(t, h.Ram.Bytes(ppte.PPN())[0], h.Ram.Bytes(cpte.PPN())[0], "writing to child's stack must not affect parent")
}

func TestFork_HeapPagesBecomeCowOnBothSides(t *testing.T) {
	h := newTestHart(t)
	parent, _ := h.AllocProcess(0, false)
	_, err := parent.Heap.GrowPages(h.Ram, 1)
	require.Equal(t, defs.Err_t(0), err)
	pg := parent.Heap.Pages()[0]
	require.Equal(t, defs.Err_t(0), parent.Pagetable.Map(h.Ram, pg.Va, pg.Pa, vm.PTE_V|vm.PTE_R|vm.PTE_U))

	child, err := h.Fork(parent)
	require.Equal(t, defs.Err_t(0), err)

	ppte, ok := parent.Pagetable.Lookup(h.Ram, pg.Va)
	require.True(t, ok)
	cpte, ok := child.Pagetable.Lookup(h.Ram, pg.Va)
	require.True(t, ok)

	assert.NotZero(t, ppte&vm.PTE_COW, "parent's heap page must become CoW after fork")
	assert.NotZero(t, cpte&vm.PTE_COW, "child's heap page must start out CoW too")
	assert.Equal(t, ppte.PPN(), cpte.PPN(), "both sides must share the same physical page until a write splits it")
}

func TestFork_PropagatesCodeAndDataSegments(t *testing.T) {
	h := newTestHart(t)
	parent, _ := h.AllocProcess(0, false)

	img := &elf.Image_t{
		Entry: 0x1000,
		Segments: []elf.Segment_t{
			{Va: 0x1000, Data: make([]byte, mem.PGSIZE), Flags: vm.PTE_R | vm.PTE_X | vm.PTE_U},
			{Va: 0x2000, Data: []byte{1, 2, 3, 4}, Flags: vm.PTE_R | vm.PTE_W | vm.PTE_U},
		},
	}
	require.Equal(t, defs.Err_t(0), h.LoadELF(parent, img))

	child, err := h.Fork(parent)
	require.Equal(t, defs.Err_t(0), err)

	ppte, ok := parent.Pagetable.Lookup(h.Ram, 0x1000)
	require.True(t, ok)
	cpte, ok := child.Pagetable.Lookup(h.Ram, 0x1000)
	require.True(t, ok, "child must have the code page mapped")
	assert.Equal(t, ppte.PPN(), cpte.PPN(), "CODE_SEGMENT pages must be shared, not copied")

	pdata, ok := parent.Pagetable.Lookup(h.Ram, 0x2000)
	require.True(t, ok)
	cdata, ok := child.Pagetable.Lookup(h.Ram, 0x2000)
	require.True(t, ok, "child must have the data page mapped")
	assert.NotEqual(t, pdata.PPN(), cdata.PPN(), "DATA_SEGMENT pages must be deep-copied")
	assert.Equal(t, byte(1), h.Ram.Bytes(cdata.PPN())[0], "copied data must match parent's contents")

	var gotCode, gotData bool
	for _, r := range child.Mapped {
		switch r.Kind {
		case defs.CODE_SEGMENT:
			gotCode = true
		case defs.DATA_SEGMENT:
			gotData = true
		}
	}
	assert.True(t, gotCode, "child.Mapped must record the inherited CODE_SEGMENT")
	assert.True(t, gotData, "child.Mapped must record the inherited DATA_SEGMENT")
}

func TestFork_FailsWhenPoolFull(t *testing.T) {
	h := newTestHart(t)
	parent, _ := h.AllocProcess(0, false)
	for h.Procs[len(h.Procs)-1] == nil {
		if _, err := h.AllocProcess(0, false); err != 0 {
			break
		}
	}
	_, err := h.Fork(parent)
	assert.Equal(t, defs.EAGAIN, err)
}
