package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvpke/kernel/src/defs"
)

func TestExit_MarksZombieWithCode(t *testing.T) {
	h := newTestHart(t)
	p, _ := h.AllocProcess(0, false)

	h.Exit(p, 7)

	assert.Equal(t, defs.ZOMBIE, p.Status)
	assert.Equal(t, 7, p.ExitCode)
}

func TestWait_ReapsMatchingZombieImmediately(t *testing.T) {
	h := newTestHart(t)
	parent, _ := h.AllocProcess(0, false)
	child, _ := h.AllocProcess(parent.Pid, false)
	h.Exit(child, 3)

	pid, code, err := h.Wait(parent, -1)
	require.Equal(t, defs.Err_t(0), err)
	assert.Equal(t, child.Pid, pid)
	assert.Equal(t, 3, code)
	assert.Equal(t, defs.FREE, child.Status)
	assert.Nil(t, h.ProcByPid(child.Pid))
}

func TestWait_SpecificPidIgnoresOtherZombies(t *testing.T) {
	h := newTestHart(t)
	parent, _ := h.AllocProcess(0, false)
	a, _ := h.AllocProcess(parent.Pid, false)
	b, _ := h.AllocProcess(parent.Pid, false)
	h.Exit(a, 1)

	// Waiting specifically for b, who is still alive, must not reap a.
	_, _, err := h.Wait(parent, b.Pid)
	assert.Equal(t, defs.EAGAIN, err)
	assert.Equal(t, defs.ZOMBIE, a.Status, "a must remain unreaped since the caller asked for b")
}

func TestWait_NoMatchingChildReturnsECHILD(t *testing.T) {
	h := newTestHart(t)
	parent, _ := h.AllocProcess(0, false)

	_, _, err := h.Wait(parent, -1)
	assert.Equal(t, defs.ECHILD, err)
}

func TestWait_LivingChildButNoZombieReturnsEAGAIN(t *testing.T) {
	h := newTestHart(t)
	parent, _ := h.AllocProcess(0, false)
	h.AllocProcess(parent.Pid, false)

	_, _, err := h.Wait(parent, -1)
	assert.Equal(t, defs.EAGAIN, err)
}

func TestWaitBlocks_TrueWhileChildAliveFalseOnceReaped(t *testing.T) {
	h := newTestHart(t)
	parent, _ := h.AllocProcess(0, false)
	child, _ := h.AllocProcess(parent.Pid, false)

	assert.True(t, h.WaitBlocks(parent, -1))

	h.Exit(child, 0)
	assert.False(t, h.WaitBlocks(parent, -1), "a zombie child does not block: Wait reaps it at once")

	h.Wait(parent, -1)
	assert.False(t, h.WaitBlocks(parent, -1))
}

func TestWaitBlocks_FalseWithNoChildren(t *testing.T) {
	h := newTestHart(t)
	parent, _ := h.AllocProcess(0, false)
	assert.False(t, h.WaitBlocks(parent, -1))
}
