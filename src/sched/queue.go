// Package sched implements the per-hart ready/blocked queues and the
// round-robin scheduler (original sched.c). Queues are intrusive
// singly-linked lists threaded through proc.Proc.QueueNext, exactly as
// the source threads them through process_t's own next pointer.
package sched

import (
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/proc"
)

/// InsertReady appends p to the ready queue's tail, skipping if it is
/// already queued (insert_to_ready_queue).
func InsertReady(h *proc.Hart_t, p *proc.Proc) {
	if queued(h, p) {
		return
	}
	p.Status = defs.READY
	appendReady(h, p)
}

/// InsertBlocked appends p to the blocked queue's tail, skipping if it
/// is already queued (insert_to_blocked_queue).
func InsertBlocked(h *proc.Hart_t, p *proc.Proc) {
	if queued(h, p) {
		return
	}
	p.Status = defs.BLOCKED
	appendBlocked(h, p)
}

/// FromReadyToReady moves p to the tail of the ready queue -- the
/// behavior yield uses (spec.md's explicit choice over the source's
/// from_blocked_to_ready, which would be a bug here).
func FromReadyToReady(h *proc.Hart_t, p *proc.Proc) {
	removeReady(h, p)
	appendReady(h, p)
}

/// FromReadyToBlocked removes p from ready and appends it to blocked
/// (from_ready_to_blocked).
func FromReadyToBlocked(h *proc.Hart_t, p *proc.Proc) {
	removeReady(h, p)
	p.Status = defs.BLOCKED
	appendBlocked(h, p)
}

/// FromBlockedToReady removes p from blocked and appends it to ready
/// (from_blocked_to_ready).
func FromBlockedToReady(h *proc.Hart_t, p *proc.Proc) {
	removeBlocked(h, p)
	p.Status = defs.READY
	appendReady(h, p)
}

func queued(h *proc.Hart_t, p *proc.Proc) bool {
	for q := h.ReadyHead; q != nil; q = q.QueueNext {
		if q == p {
			return true
		}
	}
	for q := h.BlockedHead; q != nil; q = q.QueueNext {
		if q == p {
			return true
		}
	}
	return false
}

func appendReady(h *proc.Hart_t, p *proc.Proc) {
	p.QueueNext = nil
	if h.ReadyTail == nil {
		h.ReadyHead, h.ReadyTail = p, p
		return
	}
	h.ReadyTail.QueueNext = p
	h.ReadyTail = p
}

func appendBlocked(h *proc.Hart_t, p *proc.Proc) {
	p.QueueNext = nil
	if h.BlockedTail == nil {
		h.BlockedHead, h.BlockedTail = p, p
		return
	}
	h.BlockedTail.QueueNext = p
	h.BlockedTail = p
}

func removeReady(h *proc.Hart_t, p *proc.Proc) {
	h.ReadyHead, h.ReadyTail = removeFrom(h.ReadyHead, h.ReadyTail, p)
}

func removeBlocked(h *proc.Hart_t, p *proc.Proc) {
	h.BlockedHead, h.BlockedTail = removeFrom(h.BlockedHead, h.BlockedTail, p)
}

func removeFrom(head, tail *proc.Proc, p *proc.Proc) (*proc.Proc, *proc.Proc) {
	if head == nil {
		return head, tail
	}
	if head == p {
		head = p.QueueNext
		if tail == p {
			tail = head
		}
		p.QueueNext = nil
		return head, tail
	}
	prev := head
	for cur := head.QueueNext; cur != nil; cur = cur.QueueNext {
		if cur == p {
			prev.QueueNext = cur.QueueNext
			if tail == p {
				tail = prev
			}
			p.QueueNext = nil
			return head, tail
		}
		prev = cur
	}
	return head, tail
}

/// PopReady removes and returns the ready queue's head, or nil if empty
/// (the pop half of schedule()'s "pick next process" step).
func PopReady(h *proc.Hart_t) *proc.Proc {
	p := h.ReadyHead
	if p == nil {
		return nil
	}
	removeReady(h, p)
	return p
}
