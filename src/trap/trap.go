// Package trap dispatches the three things that cross the user/kernel
// boundary in this simulator: syscalls, the hart 1 minute-tick timer, and
// page faults (original strap.c's smode_trap_handler). There is no real
// ecall/mtimer/page-fault CPU trap here -- Userprog_t closures call
// Syscall directly -- but the dispatch shape, including epc bookkeeping,
// is kept so this package reads like a trap handler rather than a
// library call dispatcher.
package trap

import (
	"bytes"

	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/elf"
	"github.com/rvpke/kernel/src/mem"
	"github.com/rvpke/kernel/src/proc"
	"github.com/rvpke/kernel/src/sched"
	"github.com/rvpke/kernel/src/ustr"
	"github.com/rvpke/kernel/src/vfs"
	"github.com/rvpke/kernel/src/vm"
)

/// Machine ties one hart's pool together with the collaborators syscalls
/// need: a console for print/scan and a vfs for the file syscalls.
type Machine struct {
	Hart    *proc.Hart_t
	Console Console_i
	Fs      vfs.Interface
	Ticks   int
}

/// Console_i is the line-buffered terminal the print/scan syscalls talk
/// to (backed by the console package's circbuf-based implementation).
type Console_i interface {
	WriteString(s string) (int, defs.Err_t)
	ReadLine() (string, defs.Err_t)
	Tickf(minutes int)
}

/// Syscall dispatches one syscall on behalf of p (handle_syscall): it
/// advances epc by one instruction's worth exactly as the source does
/// before the switch runs, then routes on a7.
func (m *Machine) Syscall(p *proc.Proc) {
	p.Trapframe.Epc += 4
	num := p.Trapframe.A(7)
	ret := m.dispatch(p, num)
	p.Trapframe.SetA(0, uint64(ret))
}

func (m *Machine) dispatch(p *proc.Proc, num uint64) int64 {
	switch num {
	case defs.SYS_PRINT:
		return m.sysPrint(p)
	case defs.SYS_EXIT:
		m.Hart.Exit(p, int(p.Trapframe.A(0)))
		return 0
	case defs.SYS_ALLOCATE_PAGE:
		return m.sysAllocPage(p)
	case defs.SYS_FREE_PAGE:
		return m.sysFreePage(p)
	case defs.SYS_BETTER_ALLOCATE_PAGE:
		return m.sysBetterMalloc(p)
	case defs.SYS_BETTER_FREE_PAGE:
		return m.sysBetterFree(p)
	case defs.SYS_FORK:
		return m.sysFork(p)
	case defs.SYS_YIELD:
		return m.sysYield(p)
	case defs.SYS_WAIT:
		return m.sysWait(p)
	case defs.SYS_SEM_NEW:
		idx, err := sched.NewSemaphore(m.Hart, int(p.Trapframe.A(0)))
		if err != 0 {
			return int64(err)
		}
		return int64(idx)
	case defs.SYS_SEM_P:
		return m.sysSemP(p)
	case defs.SYS_SEM_V:
		if err := sched.V(m.Hart, int(p.Trapframe.A(0))); err != 0 {
			return int64(err)
		}
		return 0
	case defs.SYS_SCAN:
		return m.sysScan(p)
	case defs.SYS_EXEC:
		return m.sysExec(p)
	case defs.SYS_PRINTPA:
		return m.sysPrintpa(p)
	case defs.SYS_OPEN:
		return m.sysOpen(p)
	case defs.SYS_READ:
		return m.sysRead(p)
	case defs.SYS_WRITE:
		return m.sysWriteFile(p)
	case defs.SYS_LSEEK:
		return m.sysLseek(p)
	case defs.SYS_STAT:
		return m.sysStat(p)
	case defs.SYS_DISK_STAT:
		return m.sysDiskStat(p)
	case defs.SYS_CLOSE:
		return m.sysClose(p)
	case defs.SYS_OPENDIR:
		return m.sysOpendir(p)
	case defs.SYS_READDIR:
		return m.sysReaddir(p)
	case defs.SYS_MKDIR:
		return m.sysMkdir(p)
	case defs.SYS_CLOSEDIR:
		return m.sysClosedir(p)
	case defs.SYS_LINK:
		return m.sysLink(p)
	case defs.SYS_UNLINK:
		return m.sysUnlink(p)
	case defs.SYS_RCWD:
		return m.sysRcwd(p)
	case defs.SYS_CCWD:
		return m.sysCcwd(p)
	default:
		return int64(defs.EINVAL)
	}
}

// readUserBytes copies up to n bytes starting at va out of p's
// address space, the shared first step every syscall that takes a path
// or write buffer performs before touching m.Fs or m.Console.
func (m *Machine) readUserBytes(p *proc.Proc, va uintptr, n int) ([]byte, defs.Err_t) {
	ub := vm.MkUserbuf(m.Hart.Ram, p.Pagetable, va, n)
	buf := make([]byte, n)
	got, err := ub.Uioread(buf)
	if err != 0 {
		return nil, err
	}
	return buf[:got], 0
}

func (m *Machine) writeUserBytes(p *proc.Proc, va uintptr, data []byte) (int, defs.Err_t) {
	ub := vm.MkUserbuf(m.Hart.Ram, p.Pagetable, va, len(data))
	return ub.Uiowrite(data)
}

func (m *Machine) readUserPath(p *proc.Proc, va uintptr, n int) (string, defs.Err_t) {
	b, err := m.readUserBytes(p, va, n)
	if err != 0 {
		return "", err
	}
	return string(b), 0
}

func (m *Machine) sysPrint(p *proc.Proc) int64 {
	va := uintptr(p.Trapframe.A(0))
	n := int(p.Trapframe.A(1))
	ub := vm.MkUserbuf(m.Hart.Ram, p.Pagetable, va, n)
	buf := make([]byte, n)
	got, err := ub.Uioread(buf)
	if err != 0 {
		return int64(err)
	}
	if m.Console == nil {
		return int64(got)
	}
	w, err := m.Console.WriteString(string(buf[:got]))
	if err != 0 {
		return int64(err)
	}
	return int64(w)
}

func (m *Machine) sysAllocPage(p *proc.Proc) int64 {
	n := int(p.Trapframe.A(0))
	va, err := p.Heap.GrowPages(m.Hart.Ram, n)
	if err != 0 {
		return int64(err)
	}
	m.mapNewHeapPages(p)
	return int64(va)
}

// mapNewHeapPages installs page table entries for any heap page the heap
// manager already knows about but the page table doesn't yet (freshly
// grown pages). Pages already mapped are left untouched -- re-mapping
// them would either be a kernel-fatal double-map or, for a page a fork
// just flipped to PTE_COW, would silently clobber that bit.
func (m *Machine) mapNewHeapPages(p *proc.Proc) {
	for _, pg := range p.Heap.Pages() {
		if _, ok := p.Pagetable.Lookup(m.Hart.Ram, pg.Va); ok {
			continue
		}
		p.Pagetable.Map(m.Hart.Ram, pg.Va, pg.Pa, vm.ProtToType(vm.PROT_READ|vm.PROT_WRITE, true))
	}
}

func (m *Machine) sysFreePage(p *proc.Proc) int64 {
	va := uintptr(p.Trapframe.A(0))
	if err := p.Heap.Free(va); err != 0 {
		return int64(err)
	}
	p.Pagetable.Unmap(m.Hart.Ram, va)
	return 0
}

func (m *Machine) sysBetterMalloc(p *proc.Proc) int64 {
	n := int(p.Trapframe.A(0))
	va, err := p.Heap.Malloc(m.Hart.Ram, n)
	if err != 0 {
		return int64(err)
	}
	m.mapNewHeapPages(p)
	return int64(va)
}

func (m *Machine) sysBetterFree(p *proc.Proc) int64 {
	va := uintptr(p.Trapframe.A(0))
	if err := p.Heap.Free(va); err != 0 {
		return int64(err)
	}
	return 0
}

func (m *Machine) sysFork(p *proc.Proc) int64 {
	child, err := m.Hart.Fork(p)
	if err != 0 {
		return int64(err)
	}
	sched.InsertReady(m.Hart, child)
	return int64(child.Pid)
}

func (m *Machine) sysYield(p *proc.Proc) int64 {
	_, err := sched.Yield(m.Hart, p)
	if _, ok := err.(sched.Shutdown); ok {
		return 0
	}
	return 0
}

func (m *Machine) sysWait(p *proc.Proc) int64 {
	pid := defs.Tid_t(int64(p.Trapframe.A(0)))
	cpid, code, err := m.Hart.Wait(p, pid)
	if err == defs.EAGAIN {
		sched.FromReadyToBlocked(m.Hart, p)
		p.WaitingPid = cpid // Wait resolves pid==-1 to a concrete child
		return int64(defs.EAGAIN)
	}
	if err != 0 {
		return int64(err)
	}
	p.Trapframe.SetA(1, uint64(code))
	return int64(cpid)
}

func (m *Machine) sysSemP(p *proc.Proc) int64 {
	idx := int(p.Trapframe.A(0))
	blocked, err := sched.P(m.Hart, p, idx)
	if err != 0 {
		return int64(err)
	}
	if blocked {
		return int64(defs.EAGAIN)
	}
	return 0
}

// sysScan implements the scan syscall: pop one queued input line off the
// console and copy it into the user buffer at a0, up to a1 bytes.
func (m *Machine) sysScan(p *proc.Proc) int64 {
	if m.Console == nil {
		return int64(defs.EAGAIN)
	}
	line, err := m.Console.ReadLine()
	if err != 0 {
		return int64(err)
	}
	va := uintptr(p.Trapframe.A(0))
	n := int(p.Trapframe.A(1))
	data := []byte(line)
	if len(data) > n {
		data = data[:n]
	}
	put, werr := m.writeUserBytes(p, va, data)
	if werr != 0 {
		return int64(werr)
	}
	return int64(put)
}

// sysPrintpa implements printpa: translate a user VA and return the
// backing physical page address, for user-level diagnostics (the
// userspace equivalent of a TLB dump).
func (m *Machine) sysPrintpa(p *proc.Proc) int64 {
	va := uintptr(p.Trapframe.A(0))
	pte, ok := p.Pagetable.Lookup(m.Hart.Ram, va)
	if !ok {
		return int64(defs.EFAULT)
	}
	return int64(pte.PPN())
}

// sysExec implements exec(path, arg): load path's ELF image from m.Fs,
// reset p's address space the way Hart_t.Exec does for do_exec, and map
// the loaded CODE/DATA segments. Unlike a real CPU, this hosted
// simulator has no instruction-level interpreter to step the mapped
// machine code -- user programs run as Userprog_t closures -- so an
// exec'd process keeps running with a nil Entry once its trapframe and
// segments are installed; that is the syscall's complete, honest
// contract in a machine without an ISA interpreter.
func (m *Machine) sysExec(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	pathVa := uintptr(p.Trapframe.A(0))
	pathLen := int(p.Trapframe.A(1))
	path, err := m.readUserPath(p, pathVa, pathLen)
	if err != 0 {
		return int64(err)
	}
	argv := []string{path}
	if argLen := int(p.Trapframe.A(3)); argLen > 0 {
		arg, aerr := m.readUserPath(p, uintptr(p.Trapframe.A(2)), argLen)
		if aerr == 0 {
			argv = append(argv, arg)
		}
	}

	fd, ferr := m.Fs.Open(path, vfs.O_RDONLY)
	if ferr != 0 {
		return int64(ferr)
	}
	defer m.Fs.Close(fd)

	var data []byte
	for {
		chunk, rerr := m.Fs.Read(fd, mem.PGSIZE)
		if rerr != 0 || len(chunk) == 0 {
			break
		}
		data = append(data, chunk...)
	}

	img, ierr := elf.Load(bytes.NewReader(data))
	if ierr != 0 {
		return int64(ierr)
	}

	if err := m.Hart.Exec(p, nil, argv, false); err != 0 {
		return int64(err)
	}
	if err := m.Hart.LoadELF(p, img); err != 0 {
		return int64(err)
	}
	return int64(len(argv))
}

func (m *Machine) sysOpen(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	path, err := m.readUserPath(p, uintptr(p.Trapframe.A(0)), int(p.Trapframe.A(1)))
	if err != 0 {
		return int64(err)
	}
	flags := int(p.Trapframe.A(2))
	fd, ferr := m.Fs.Open(path, flags)
	if ferr != 0 {
		return int64(ferr)
	}
	return int64(fd)
}

func (m *Machine) sysRead(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	fd := int(p.Trapframe.A(0))
	dstVa := uintptr(p.Trapframe.A(1))
	n := int(p.Trapframe.A(2))
	data, err := m.Fs.Read(fd, n)
	if err != 0 {
		return int64(err)
	}
	put, werr := m.writeUserBytes(p, dstVa, data)
	if werr != 0 {
		return int64(werr)
	}
	return int64(put)
}

func (m *Machine) sysWriteFile(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	fd := int(p.Trapframe.A(0))
	srcVa := uintptr(p.Trapframe.A(1))
	n := int(p.Trapframe.A(2))
	data, err := m.readUserBytes(p, srcVa, n)
	if err != 0 {
		return int64(err)
	}
	got, werr := m.Fs.Write(fd, data)
	if werr != 0 {
		return int64(werr)
	}
	return int64(got)
}

func (m *Machine) sysLseek(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	fd := int(p.Trapframe.A(0))
	off := int(p.Trapframe.A(1))
	whence := int(p.Trapframe.A(2))
	pos, err := m.Fs.Lseek(fd, off, whence)
	if err != 0 {
		return int64(err)
	}
	return int64(pos)
}

func (m *Machine) sysStat(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	path, err := m.readUserPath(p, uintptr(p.Trapframe.A(0)), int(p.Trapframe.A(1)))
	if err != 0 {
		return int64(err)
	}
	st, serr := m.Fs.Stat(path)
	if serr != 0 {
		return int64(serr)
	}
	if _, werr := m.writeUserBytes(p, uintptr(p.Trapframe.A(2)), st.Bytes()); werr != 0 {
		return int64(werr)
	}
	return 0
}

// sysDiskStat reports the machine's physical page allocator occupancy
// (free, used) as two little-endian uint64s at a0, standing in for the
// disk usage report a real backing store would have; this simulator has
// no disk image, only the flat RAM pmm.c's pages come from.
func (m *Machine) sysDiskStat(p *proc.Proc) int64 {
	free, used := m.Hart.Ram.Stats()
	var buf [16]byte
	putUint64(buf[0:8], uint64(free))
	putUint64(buf[8:16], uint64(used))
	if _, err := m.writeUserBytes(p, uintptr(p.Trapframe.A(0)), buf[:]); err != 0 {
		return int64(err)
	}
	return 0
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func (m *Machine) sysClose(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	if err := m.Fs.Close(int(p.Trapframe.A(0))); err != 0 {
		return int64(err)
	}
	return 0
}

func (m *Machine) sysOpendir(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	path, err := m.readUserPath(p, uintptr(p.Trapframe.A(0)), int(p.Trapframe.A(1)))
	if err != 0 {
		return int64(err)
	}
	fd, derr := m.Fs.Opendir(path)
	if derr != 0 {
		return int64(derr)
	}
	return int64(fd)
}

func (m *Machine) sysReaddir(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	name, err := m.Fs.Readdir(int(p.Trapframe.A(0)))
	if err != 0 {
		return int64(err)
	}
	if _, werr := m.writeUserBytes(p, uintptr(p.Trapframe.A(1)), []byte(name)); werr != 0 {
		return int64(werr)
	}
	return int64(len(name))
}

func (m *Machine) sysMkdir(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	path, err := m.readUserPath(p, uintptr(p.Trapframe.A(0)), int(p.Trapframe.A(1)))
	if err != 0 {
		return int64(err)
	}
	if err := m.Fs.Mkdir(path); err != 0 {
		return int64(err)
	}
	return 0
}

func (m *Machine) sysClosedir(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	if err := m.Fs.Closedir(int(p.Trapframe.A(0))); err != 0 {
		return int64(err)
	}
	return 0
}

func (m *Machine) sysLink(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	old, err := m.readUserPath(p, uintptr(p.Trapframe.A(0)), int(p.Trapframe.A(1)))
	if err != 0 {
		return int64(err)
	}
	newp, err := m.readUserPath(p, uintptr(p.Trapframe.A(2)), int(p.Trapframe.A(3)))
	if err != 0 {
		return int64(err)
	}
	if err := m.Fs.Link(old, newp); err != 0 {
		return int64(err)
	}
	return 0
}

func (m *Machine) sysUnlink(p *proc.Proc) int64 {
	if m.Fs == nil {
		return int64(defs.EINVAL)
	}
	path, err := m.readUserPath(p, uintptr(p.Trapframe.A(0)), int(p.Trapframe.A(1)))
	if err != 0 {
		return int64(err)
	}
	if err := m.Fs.Unlink(path); err != 0 {
		return int64(err)
	}
	return 0
}

// sysRcwd copies p's current working directory path into the user
// buffer at a0, up to a1 bytes.
func (m *Machine) sysRcwd(p *proc.Proc) int64 {
	p.Cwd.Lock()
	path := append([]byte(nil), p.Cwd.Path...)
	p.Cwd.Unlock()
	if len(path) > int(p.Trapframe.A(1)) {
		path = path[:p.Trapframe.A(1)]
	}
	n, err := m.writeUserBytes(p, uintptr(p.Trapframe.A(0)), path)
	if err != 0 {
		return int64(err)
	}
	return int64(n)
}

// sysCcwd changes p's current working directory to the canonicalized
// path read from a0/a1.
func (m *Machine) sysCcwd(p *proc.Proc) int64 {
	raw, err := m.readUserBytes(p, uintptr(p.Trapframe.A(0)), int(p.Trapframe.A(1)))
	if err != 0 {
		return int64(err)
	}
	p.Cwd.Lock()
	p.Cwd.Path = p.Cwd.Canonicalpath(ustr.Ustr(raw))
	p.Cwd.Unlock()
	return 0
}
