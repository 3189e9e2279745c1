package proc

import (
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/elf"
	"github.com/rvpke/kernel/src/mem"
	"github.com/rvpke/kernel/src/vm"
)

/// LoadELF maps every PT_LOAD segment of img into p's (already fresh,
/// post-Exec) address space: CODE segments read-execute, DATA segments
/// read-write, page by page, zero-filling any .bss tail the way
/// load_bincode_from_vfs_elf does after do_exec clears the process.
func (h *Hart_t) LoadELF(p *Proc, img *elf.Image_t) defs.Err_t {
	for _, seg := range img.Segments {
		kind := defs.CODE_SEGMENT
		if seg.Flags&vm.PTE_W != 0 {
			kind = defs.DATA_SEGMENT
		}
		pages := 0
		for off := 0; off < len(seg.Data); off += mem.PGSIZE {
			pa, ok := h.Ram.AllocPage()
			if !ok {
				return defs.ENOMEM
			}
			end := off + mem.PGSIZE
			if end > len(seg.Data) {
				end = len(seg.Data)
			}
			copy(h.Ram.Bytes(pa), seg.Data[off:end])
			va := seg.Va + uintptr(off)
			if err := p.Pagetable.Map(h.Ram, va, pa, seg.Flags); err != 0 {
				return err
			}
			pages++
		}
		p.Mapped = append(p.Mapped, MappedRegion_t{Va: seg.Va, Npages: pages, Kind: kind})
	}
	p.Trapframe.Epc = uint64(img.Entry)
	return 0
}
