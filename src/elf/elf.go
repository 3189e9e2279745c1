// Package elf loads a RISC-V ELF executable's PT_LOAD segments into a
// process's address space, using the standard library's debug/elf the
// same way the teacher's chentry tool parses ELF headers rather than
// hand-rolling a parser.
package elf

import (
	debugelf "debug/elf"
	"io"

	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/vm"
)

/// Segment_t is one PT_LOAD segment ready to be mapped: Data holds the
/// segment's Memsz bytes, zero past the file contents (matching .bss).
type Segment_t struct {
	Va    uintptr
	Data  []byte
	Flags vm.Pte_t
}

/// Image_t is a loaded ELF binary's entry point plus its segments.
type Image_t struct {
	Entry    uintptr
	Segments []Segment_t
}

/// Load reads and validates a RISC-V little-endian executable from r and
/// returns its loadable segments. It rejects anything that is not
/// EM_RISCV/ET_EXEC the way chkELF in the teacher's chentry tool rejects
/// non-x86 images for its own architecture.
func Load(r io.ReaderAt) (*Image_t, defs.Err_t) {
	f, err := debugelf.NewFile(r)
	if err != nil {
		return nil, defs.EINVAL
	}
	defer f.Close()

	if f.Class != debugelf.ELFCLASS64 || f.Data != debugelf.ELFDATA2LSB {
		return nil, defs.EINVAL
	}
	if f.Type != debugelf.ET_EXEC {
		return nil, defs.EINVAL
	}
	if f.Machine != debugelf.EM_RISCV {
		return nil, defs.EINVAL
	}

	img := &Image_t{Entry: uintptr(f.Entry)}
	for _, prog := range f.Progs {
		if prog.Type != debugelf.PT_LOAD {
			continue
		}
		data := make([]byte, prog.Memsz)
		if prog.Filesz > 0 {
			buf := make([]byte, prog.Filesz)
			if _, err := prog.ReadAt(buf, 0); err != nil {
				return nil, defs.EFAULT
			}
			copy(data, buf)
		}
		flags := vm.PTE_V | vm.PTE_U
		if prog.Flags&debugelf.PF_R != 0 {
			flags |= vm.PTE_R
		}
		if prog.Flags&debugelf.PF_W != 0 {
			flags |= vm.PTE_W
		}
		if prog.Flags&debugelf.PF_X != 0 {
			flags |= vm.PTE_X
		}
		img.Segments = append(img.Segments, Segment_t{
			Va:    uintptr(prog.Vaddr),
			Data:  data,
			Flags: flags,
		})
	}
	return img, 0
}
