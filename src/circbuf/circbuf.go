// Package circbuf is a byte-granular circular buffer backed by one
// physical page from mem.RAM_t. It backs the console's line buffer the
// same way the teacher's circbuf backs a tty or pipe, trimmed to drop
// the refcounted multi-owner page-sharing machinery (fdops.Userio_i,
// Rawwrite/Rawread, Refup/Refdown) that only matters once a buffer can
// be mapped into more than one address space at a time, which a console
// line buffer never is.
package circbuf

import (
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/mem"
)

/// Circbuf_t implements a simple circular buffer used by a single
/// owner. It is not safe for concurrent use.
type Circbuf_t struct {
	buf   []uint8
	bufsz int
	head  int
	tail  int
	p_pg  mem.Pa_t
}

/// Bufsz returns the configured buffer size.
func (cb *Circbuf_t) Bufsz() int { return cb.bufsz }

/// Cb_init allocates a backing page from ram and sizes the buffer to sz
/// bytes (at most one page).
func (cb *Circbuf_t) Cb_init(ram *mem.RAM_t, sz int) defs.Err_t {
	if sz <= 0 || sz > mem.PGSIZE {
		panic("bad circbuf size")
	}
	pa, ok := ram.AllocPage()
	if !ok {
		return defs.ENOMEM
	}
	cb.p_pg = pa
	cb.buf = ram.Bytes(pa)[:sz]
	cb.bufsz = sz
	cb.head, cb.tail = 0, 0
	return 0
}

/// Full returns true when the buffer cannot accept more data.
func (cb *Circbuf_t) Full() bool { return cb.head-cb.tail == cb.bufsz }

/// Empty reports whether the buffer contains any data.
func (cb *Circbuf_t) Empty() bool { return cb.head == cb.tail }

/// Left returns the remaining capacity in bytes.
func (cb *Circbuf_t) Left() int { return cb.bufsz - cb.Used() }

/// Used returns the current number of bytes in the buffer.
func (cb *Circbuf_t) Used() int { return cb.head - cb.tail }

/// Copyin appends src into the circular buffer, writing as much as fits.
func (cb *Circbuf_t) Copyin(src []byte) int {
	n := 0
	for n < len(src) && !cb.Full() {
		cb.buf[cb.head%cb.bufsz] = src[n]
		cb.head++
		n++
	}
	return n
}

/// Copyout drains up to len(dst) bytes from the buffer into dst.
func (cb *Circbuf_t) Copyout(dst []byte) int {
	n := 0
	for n < len(dst) && !cb.Empty() {
		dst[n] = cb.buf[cb.tail%cb.bufsz]
		cb.tail++
		n++
	}
	return n
}
