package trap

import (
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/klog"
	"github.com/rvpke/kernel/src/mem"
	"github.com/rvpke/kernel/src/proc"
	"github.com/rvpke/kernel/src/vm"
)

/// PageFault handles a store or load fault at va for p
/// (handle_user_page_fault): either lazy stack growth or a
/// copy-on-write resolution, both delegated to vm.Resolve. Any other
/// fault is a bad user access and kills the process, mirroring the
/// source's default-case panic -- except a user bug should not take the
/// whole hart down, so this reports EFAULT instead of panicking.
func (m *Machine) PageFault(p *proc.Proc, va uintptr, store bool) defs.Err_t {
	kind := vm.LoadFault
	if store {
		kind = vm.StoreFault
	}
	grew := va < p.StackBottom
	err := vm.Resolve(m.Hart.Ram, p.Pagetable, va, kind, func(addr uintptr) bool {
		return addr >= p.StackBottom-uintptr(maxStackGrowBytes) && addr < p.StackTop
	})
	if err != 0 {
		klog.Printf("hart %d: pid %d: unrecoverable fault at 0x%x\n", m.Hart.Id, p.Pid, va)
		m.Hart.Exit(p, -1)
		return err
	}
	if grew {
		pageva := va &^ uintptr(mem.PGSIZE-1)
		if pageva < p.StackBottom {
			p.StackBottom = pageva
		}
	}
	return 0
}

// maxStackGrowBytes bounds how far below the current stack bottom a
// fault is still considered a legitimate lazy-growth request rather
// than a wild pointer dereference.
const maxStackGrowBytes = 1 << 20
