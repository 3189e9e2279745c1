// Package oommsg carries the machine-wide shutdown broadcast: the first
// hart whose scheduler finds its own process pool all FREE or ZOMBIE
// closes ShutdownCh, and every hart's bring-up loop (cmd/pke) exits its
// run loop when it sees the channel closed. This
// repurposes the teacher's OOM notification channel idiom -- a
// fire-once broadcast channel shared across goroutines -- for the
// "machine is done" condition instead of memory exhaustion, since this
// kernel's mem package reports exhaustion through an ok bool return
// instead of a channel.
package oommsg

import "sync"

/// ShutdownCh is closed exactly once, the moment any hart's Schedule
/// observes every process in that hart's own pool as FREE or ZOMBIE.
var ShutdownCh = make(chan struct{})

var once sync.Once

/// Broadcast closes ShutdownCh if it has not been closed already.
func Broadcast() {
	once.Do(func() { close(ShutdownCh) })
}
