// Package vfs defines the minimal filesystem surface the syscall layer
// needs (open/read/write/lseek/stat/close plus directory and link
// operations) and an in-memory fake implementing it, so trap and proc
// can be tested without a disk image or driver stack -- both of which
// are explicit non-goals of this kernel.
package vfs

import (
	"sync"

	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/stat"
)

/// Interface is the full VFS surface exposed to the syscall layer.
/// Stat results use the teacher's stat.Stat_t, not a second bespoke
/// type, so a future on-disk filesystem and this in-memory one report
/// file metadata identically.
type Interface interface {
	Open(path string, flags int) (int, defs.Err_t)
	Read(fd int, n int) ([]byte, defs.Err_t)
	Write(fd int, data []byte) (int, defs.Err_t)
	Lseek(fd int, off int, whence int) (int, defs.Err_t)
	Stat(path string) (stat.Stat_t, defs.Err_t)
	Close(fd int) defs.Err_t
	Opendir(path string) (int, defs.Err_t)
	Readdir(fd int) (string, defs.Err_t)
	Mkdir(path string) defs.Err_t
	Closedir(fd int) defs.Err_t
	Link(old, new string) defs.Err_t
	Unlink(path string) defs.Err_t
}

type memFile struct {
	data []byte
}

type memFd struct {
	file *memFile
	pos  int
	dir  []string
	diri int
}

/// MemFS_t is an in-memory Interface implementation for tests and the
/// hosted simulator, where there is no disk image to mount.
type MemFS_t struct {
	mu    sync.Mutex
	files map[string]*memFile
	dirs  map[string]bool
	fds   map[int]*memFd
	nextFd int
}

/// NewMemFS returns an empty filesystem rooted at "/".
func NewMemFS() *MemFS_t {
	return &MemFS_t{
		files: make(map[string]*memFile),
		dirs:  map[string]bool{"/": true},
		fds:   make(map[int]*memFd),
	}
}

const (
	O_RDONLY = 0
	O_WRONLY = 1
	O_RDWR   = 2
	O_CREAT  = 0x40
)

func (m *MemFS_t) Open(path string, flags int) (int, defs.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		if flags&O_CREAT == 0 {
			return -1, defs.ENOENT
		}
		f = &memFile{}
		m.files[path] = f
	}
	fd := m.nextFd
	m.nextFd++
	m.fds[fd] = &memFd{file: f}
	return fd, 0
}

func (m *MemFS_t) Read(fd int, n int) ([]byte, defs.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.fds[fd]
	if !ok {
		return nil, defs.EINVAL
	}
	end := h.pos + n
	if end > len(h.file.data) {
		end = len(h.file.data)
	}
	if end < h.pos {
		return nil, 0
	}
	out := append([]byte(nil), h.file.data[h.pos:end]...)
	h.pos = end
	return out, 0
}

func (m *MemFS_t) Write(fd int, data []byte) (int, defs.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.fds[fd]
	if !ok {
		return 0, defs.EINVAL
	}
	need := h.pos + len(data)
	if need > len(h.file.data) {
		grown := make([]byte, need)
		copy(grown, h.file.data)
		h.file.data = grown
	}
	copy(h.file.data[h.pos:], data)
	h.pos += len(data)
	return len(data), 0
}

func (m *MemFS_t) Lseek(fd int, off int, whence int) (int, defs.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.fds[fd]
	if !ok {
		return 0, defs.EINVAL
	}
	switch whence {
	case 0:
		h.pos = off
	case 1:
		h.pos += off
	case 2:
		h.pos = len(h.file.data) + off
	default:
		return 0, defs.EINVAL
	}
	return h.pos, 0
}

func (m *MemFS_t) Stat(path string) (stat.Stat_t, defs.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return stat.Stat_t{}, defs.ENOENT
	}
	var st stat.Stat_t
	st.Wsize(uint(len(f.data)))
	return st, 0
}

func (m *MemFS_t) Close(fd int) defs.Err_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fds[fd]; !ok {
		return defs.EINVAL
	}
	delete(m.fds, fd)
	return 0
}

func (m *MemFS_t) Opendir(path string) (int, defs.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirs[path] {
		return -1, defs.ENOENT
	}
	var names []string
	prefix := path
	if prefix != "/" {
		prefix += "/"
	} else {
		prefix = "/"
	}
	for name := range m.files {
		names = append(names, name)
	}
	fd := m.nextFd
	m.nextFd++
	m.fds[fd] = &memFd{dir: names}
	return fd, 0
}

func (m *MemFS_t) Readdir(fd int) (string, defs.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.fds[fd]
	if !ok || h.dir == nil {
		return "", defs.EINVAL
	}
	if h.diri >= len(h.dir) {
		return "", defs.ENOENT
	}
	name := h.dir[h.diri]
	h.diri++
	return name, 0
}

func (m *MemFS_t) Mkdir(path string) defs.Err_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirs[path] {
		return defs.EINVAL
	}
	m.dirs[path] = true
	return 0
}

func (m *MemFS_t) Closedir(fd int) defs.Err_t {
	return m.Close(fd)
}

func (m *MemFS_t) Link(old, new string) defs.Err_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[old]
	if !ok {
		return defs.ENOENT
	}
	m.files[new] = f
	return 0
}

func (m *MemFS_t) Unlink(path string) defs.Err_t {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return defs.ENOENT
	}
	delete(m.files, path)
	return 0
}
