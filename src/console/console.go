// Package console implements the kernel's single text console: print
// syscalls append to it, scan syscalls read a line back out. Output is
// line-buffered through a circbuf.Circbuf_t exactly the way the
// teacher's tty driver layers a circbuf underneath user I/O; input is a
// simple queue of pre-fed lines, since this kernel has no keyboard
// driver to poll.
package console

import (
	"bytes"
	"sync"

	"golang.org/x/text/message"

	"github.com/rvpke/kernel/src/circbuf"
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/mem"
)

/// Console_t is the machine's text console.
type Console_t struct {
	mu    sync.Mutex
	out   circbuf.Circbuf_t
	lines []string
	p     *message.Printer
}

/// New allocates a console with a PGSIZE output buffer from ram.
func New(ram *mem.RAM_t) (*Console_t, defs.Err_t) {
	c := &Console_t{p: message.NewPrinter(message.MatchLanguage("en"))}
	if err := c.out.Cb_init(ram, mem.PGSIZE); err != 0 {
		return nil, err
	}
	return c, 0
}

/// WriteString appends as much of s as fits to the console's output
/// buffer and returns the number of bytes taken; the rest is dropped.
/// It does not drain the buffer itself (Drain does that).
func (c *Console_t) WriteString(s string) (int, defs.Err_t) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := []byte(s)
	n := c.out.Copyin(b)
	return n, 0
}

/// Drain copies everything currently buffered into w and empties the
/// buffer, returning the number of bytes moved.
func (c *Console_t) Drain(w *bytes.Buffer) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	tmp := make([]byte, c.out.Used())
	n := c.out.Copyout(tmp)
	w.Write(tmp[:n])
	return n
}

/// FeedLine queues a line of input for the next ReadLine, standing in
/// for a keyboard driver (this kernel has none).
func (c *Console_t) FeedLine(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

/// ReadLine pops the next queued input line.
func (c *Console_t) ReadLine() (string, defs.Err_t) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) == 0 {
		return "", defs.EAGAIN
	}
	line := c.lines[0]
	c.lines = c.lines[1:]
	return line, 0
}

/// Tickf formats and writes a localized minute-tick message (the hart 1
/// per-minute log line), demonstrating the same message.Printer the
/// source's other text-formatting concerns would use for pluralized
/// diagnostics.
func (c *Console_t) Tickf(minutes int) {
	c.WriteString(c.p.Sprintf("%d minute(s) elapsed\n", minutes))
}
