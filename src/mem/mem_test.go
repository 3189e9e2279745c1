package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocPage_ZeroedAndDistinct(t *testing.T) {
	ram := Phys_init(4, 0)

	a, ok := ram.AllocPage()
	require.True(t, ok)
	b, ok := ram.AllocPage()
	require.True(t, ok)
	assert.NotEqual(t, a, b)

	buf := ram.Bytes(a)
	for i := range buf {
		buf[i] = 0xff
	}
	ram.FreePage(a)

	c, ok := ram.AllocPage()
	require.True(t, ok)
	assert.Equal(t, a, c, "freed page should be recycled")
	for _, v := range ram.Bytes(c) {
		assert.Equal(t, byte(0), v, "recycled page must come back zeroed")
	}
}

func TestAllocPage_ExhaustionReturnsNotOK(t *testing.T) {
	ram := Phys_init(2, 0)
	_, ok1 := ram.AllocPage()
	_, ok2 := ram.AllocPage()
	require.True(t, ok1)
	require.True(t, ok2)

	_, ok3 := ram.AllocPage()
	assert.False(t, ok3, "allocating past capacity must report ok=false, not panic")
}

func TestAllocTwoPage_FindsAdjacentPair(t *testing.T) {
	ram := Phys_init(4, 0)

	lo, hi, ok := ram.AllocTwoPage()
	require.True(t, ok)
	assert.Equal(t, lo+Pa_t(PGSIZE), hi, "pair must be physically adjacent, lo directly below hi")

	free, used := ram.Stats()
	assert.Equal(t, 2, free)
	assert.Equal(t, 2, used)
}

func TestAllocTwoPage_FailsWhenNoneAdjacent(t *testing.T) {
	ram := Phys_init(4, 0)

	// Consume every page but one from each potential pair by allocating
	// singly until only non-adjacent singles are left.
	var held []Pa_t
	for {
		pa, ok := ram.AllocPage()
		if !ok {
			break
		}
		held = append(held, pa)
	}
	// Free back every other page, leaving a checkerboard with no two
	// adjacent free pages.
	for i, pa := range held {
		if i%2 == 0 {
			ram.FreePage(pa)
		}
	}

	_, _, ok := ram.AllocTwoPage()
	assert.False(t, ok)
}

func TestFreePage_PanicsOnMisalignment(t *testing.T) {
	ram := Phys_init(2, 0)
	assert.Panics(t, func() {
		ram.FreePage(1)
	})
}

func TestFreePage_PanicsOutOfRange(t *testing.T) {
	ram := Phys_init(2, 0)
	assert.Panics(t, func() {
		ram.FreePage(Pa_t(100 * PGSIZE))
	})
}

func TestPhysInit_ReservesKernelPrefix(t *testing.T) {
	ram := Phys_init(3, 2)
	assert.Equal(t, 5, ram.Npages())
	free, used := ram.Stats()
	assert.Equal(t, 3, free, "only the non-kernel pages should start free")
	assert.Equal(t, 0, used)
}
