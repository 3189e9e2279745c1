// Command pke-objdump disassembles the text segment of a RISC-V ELF
// image using golang.org/x/arch/riscv64/riscv64asm, the same decoder
// family the pack's x86 hypervisor examples use for their own
// instruction decoding (golang.org/x/arch/x86/x86asm). src/elf loads
// segments as raw bytes for the simulator; this tool is the read-only
// counterpart, useful for inspecting a binary before feeding it to
// cmd/pke.
package main

import (
	"fmt"
	"os"

	"golang.org/x/arch/riscv64/riscv64asm"

	"github.com/rvpke/kernel/src/elf"
	"github.com/rvpke/kernel/src/vm"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: pke-objdump <elf-file>")
		os.Exit(1)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, "pke-objdump:", err)
		os.Exit(1)
	}
}

func run(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, eerr := elf.Load(f)
	if eerr != 0 {
		return eerr
	}

	fmt.Printf("entry: 0x%x\n", img.Entry)
	for _, seg := range img.Segments {
		if seg.Flags&vm.PTE_X == 0 {
			continue
		}
		fmt.Printf("\ndisassembly of segment at 0x%x (%d bytes):\n", seg.Va, len(seg.Data))
		disasm(seg.Va, seg.Data)
	}
	return nil
}

func disasm(base uintptr, code []byte) {
	off := 0
	for off < len(code) {
		inst, err := riscv64asm.Decode(code[off:])
		if err != nil {
			fmt.Printf("  0x%08x\t%02x\t(bad)\n", base+uintptr(off), code[off])
			off++
			continue
		}
		fmt.Printf("  0x%08x\t%s\n", base+uintptr(off), inst.String())
		if inst.Len == 0 {
			break
		}
		off += inst.Len
	}
}
