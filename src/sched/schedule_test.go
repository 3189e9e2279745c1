package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvpke/kernel/src/defs"
)

func TestSchedule_DispatchesReadyHead(t *testing.T) {
	h := newTestHart(t)
	a := newTestProc(t, h)
	b := newTestProc(t, h)
	InsertReady(h, a)
	InsertReady(h, b)

	next, err := Schedule(h)
	require.NoError(t, err)
	assert.Same(t, a, next)
	assert.Equal(t, defs.RUNNING, a.Status)
	assert.Same(t, a, h.Current)
}

func TestSchedule_ReturnsShutdownWhenPoolEmpty(t *testing.T) {
	h := newTestHart(t)
	a := newTestProc(t, h)
	h.FreeProcess(a)
	h.ReclaimProcess(a)

	next, err := Schedule(h)
	assert.Nil(t, next)
	assert.ErrorIs(t, err, Shutdown{})
}

func TestSchedule_WakesWaiterWhenTargetBecomesZombie(t *testing.T) {
	h := newTestHart(t)
	parent := newTestProc(t, h)
	child := newTestProc(t, h)

	parent.WaitingPid = child.Pid
	FromReadyToBlocked(h, parent)
	InsertReady(h, child)
	// Drain child out of ready so only parent (blocked) remains relevant.
	require.Same(t, child, PopReady(h))
	h.FreeProcess(child)

	next, err := Schedule(h)
	require.NoError(t, err)
	assert.Same(t, parent, next, "the waiting parent should be woken and dispatched")
}

func TestYield_RequeuesAtTailAndDispatchesNext(t *testing.T) {
	h := newTestHart(t)
	a := newTestProc(t, h)
	b := newTestProc(t, h)
	InsertReady(h, a)
	InsertReady(h, b)
	require.Same(t, a, PopReady(h))
	InsertReady(h, a) // simulate a currently running, now yielding

	next, err := Yield(h, a)
	require.NoError(t, err)
	assert.Same(t, b, next, "b was ahead of a in the ready queue and should run next")
}
