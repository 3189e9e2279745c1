package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/mem"
	"github.com/rvpke/kernel/src/proc"
)

func newTestHart(t *testing.T) *proc.Hart_t {
	t.Helper()
	ram := mem.Phys_init(64, 0)
	return proc.NewHart(0, ram)
}

func newTestProc(t *testing.T, h *proc.Hart_t) *proc.Proc {
	t.Helper()
	p, err := h.AllocProcess(0, false)
	require.Equal(t, defs.Err_t(0), err)
	return p
}

func TestInsertReady_FIFOOrder(t *testing.T) {
	h := newTestHart(t)
	a := newTestProc(t, h)
	b := newTestProc(t, h)
	c := newTestProc(t, h)

	InsertReady(h, a)
	InsertReady(h, b)
	InsertReady(h, c)

	assert.Same(t, a, PopReady(h))
	assert.Same(t, b, PopReady(h))
	assert.Same(t, c, PopReady(h))
	assert.Nil(t, PopReady(h))
}

func TestInsertReady_SkipsAlreadyQueued(t *testing.T) {
	h := newTestHart(t)
	a := newTestProc(t, h)

	InsertReady(h, a)
	InsertReady(h, a) // must be a no-op, not a duplicate

	assert.Same(t, a, PopReady(h))
	assert.Nil(t, PopReady(h), "a must not appear twice in the queue")
}

func TestFromReadyToReady_MovesToTail(t *testing.T) {
	h := newTestHart(t)
	a := newTestProc(t, h)
	b := newTestProc(t, h)
	InsertReady(h, a)
	InsertReady(h, b)

	FromReadyToReady(h, a)

	assert.Same(t, b, PopReady(h), "a must now be behind b")
	assert.Same(t, a, PopReady(h))
}

func TestFromReadyToBlocked_MovesBetweenQueues(t *testing.T) {
	h := newTestHart(t)
	a := newTestProc(t, h)
	InsertReady(h, a)

	FromReadyToBlocked(h, a)
	assert.Nil(t, PopReady(h))
	assert.Equal(t, defs.BLOCKED, a.Status)
	assert.Same(t, a, h.BlockedHead)
}

func TestFromBlockedToReady_MovesBackToReady(t *testing.T) {
	h := newTestHart(t)
	a := newTestProc(t, h)
	InsertBlocked(h, a)

	FromBlockedToReady(h, a)
	assert.Equal(t, defs.READY, a.Status)
	assert.Same(t, a, PopReady(h))
	assert.Nil(t, h.BlockedHead)
}

func TestRemoveFromMiddle_PreservesRemainingOrder(t *testing.T) {
	h := newTestHart(t)
	a := newTestProc(t, h)
	b := newTestProc(t, h)
	c := newTestProc(t, h)
	InsertReady(h, a)
	InsertReady(h, b)
	InsertReady(h, c)

	FromReadyToBlocked(h, b)

	assert.Same(t, a, PopReady(h))
	assert.Same(t, c, PopReady(h))
	assert.Nil(t, PopReady(h))
}
