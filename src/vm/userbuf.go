package vm

import (
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/mem"
	"github.com/rvpke/kernel/src/util"
)

/// Userbuf_t is a cursor over a contiguous user virtual-address range,
/// used to copy syscall arguments (print/write buffers, scan/read
/// destinations) between kernel and user memory one page at a time. It
/// is a trimmed version of the teacher's scatter-gather Userbuf_t: ours
/// drops the bounds/res resource-accounting fields that package never
/// shipped source for, since this kernel has no per-process memory
/// quota to charge the copy against.
type Userbuf_t struct {
	ram *mem.RAM_t
	pt  *Pagetable_t
	va  uintptr
	len int
	off int
}

/// MkUserbuf initializes a cursor over [va, va+length).
func MkUserbuf(ram *mem.RAM_t, pt *Pagetable_t, va uintptr, length int) Userbuf_t {
	return Userbuf_t{ram: ram, pt: pt, va: va, len: length}
}

/// Remain reports how many bytes are left to copy.
func (u *Userbuf_t) Remain() int {
	return u.len - u.off
}

func (u *Userbuf_t) pagechunk() (data []byte, pagerem int, err defs.Err_t) {
	cur := u.va + uintptr(u.off)
	pte, ok := u.pt.Lookup(u.ram, cur)
	if !ok {
		return nil, 0, defs.EFAULT
	}
	pageoff := int(cur) & (mem.PGSIZE - 1)
	pagerem = mem.PGSIZE - pageoff
	page := u.ram.Bytes(pte.ppn())
	return page[pageoff:], pagerem, 0
}

/// Uioread copies up to len(dst) bytes from user memory into dst,
/// advancing the cursor, and returns the number of bytes copied.
func (u *Userbuf_t) Uioread(dst []byte) (int, defs.Err_t) {
	got := 0
	for got < len(dst) && u.Remain() > 0 {
		chunk, pagerem, err := u.pagechunk()
		if err != 0 {
			return got, err
		}
		n := util.Min(util.Min(len(dst)-got, pagerem), u.Remain())
		copy(dst[got:got+n], chunk[:n])
		got += n
		u.off += n
	}
	return got, 0
}

/// Uiowrite copies up to len(src) bytes from src into user memory,
/// advancing the cursor, and returns the number of bytes copied.
func (u *Userbuf_t) Uiowrite(src []byte) (int, defs.Err_t) {
	put := 0
	for put < len(src) && u.Remain() > 0 {
		chunk, pagerem, err := u.pagechunk()
		if err != 0 {
			return put, err
		}
		n := util.Min(util.Min(len(src)-put, pagerem), u.Remain())
		copy(chunk[:n], src[put:put+n])
		put += n
		u.off += n
	}
	return put, 0
}
