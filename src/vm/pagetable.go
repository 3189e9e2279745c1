// Package vm implements SV39 paging over the simulated RAM in mem: three
// levels of 512-entry page tables, 9 bits of VPN per level, 4KB pages.
// Page tables are ordinary byte-encoded tables that live inside the same
// []byte RAM as everything else -- there is no direct-map and no
// unsafe.Pointer walking, unlike the x86 PML4 code (vm/as.go) this
// package is grounded on.
package vm

import (
	"encoding/binary"

	"github.com/rvpke/kernel/src/caller"
	"github.com/rvpke/kernel/src/defs"
	"github.com/rvpke/kernel/src/mem"
)

// PTE bit layout, RISC-V SV39 plus one software bit we repurpose for
// copy-on-write tracking (bit 8, the first of the two reserved-for-software
// bits in a real SV39 PTE).
const (
	PTE_V Pte_t = 1 << 0 // valid
	PTE_R Pte_t = 1 << 1 // readable
	PTE_W Pte_t = 1 << 2 // writable
	PTE_X Pte_t = 1 << 3 // executable
	PTE_U Pte_t = 1 << 4 // user-accessible
	PTE_G Pte_t = 1 << 5 // global
	PTE_A Pte_t = 1 << 6 // accessed
	PTE_D Pte_t = 1 << 7 // dirty
	PTE_COW Pte_t = 1 << 8 // software: page is copy-on-write
)

const (
	levelBits = 9
	vpnMask   = (1 << levelBits) - 1
	pteBytes  = 8
)

/// Pte_t is a single SV39 page table entry, encoded as flags in the low
/// bits and a physical page number in the high bits, exactly like real
/// SV39 hardware expects (minus the PPN[2] extra bits we don't need at
/// our address space size).
type Pte_t uint64

func (p Pte_t) ppn() mem.Pa_t {
	return mem.Pa_t((p >> 10) << mem.PGSHIFT)
}

/// PPN returns the physical page this PTE maps to, for callers outside
/// vm that need to compare or inspect the backing page directly (e.g.
/// fork's CoW bookkeeping, diagnostics).
func (p Pte_t) PPN() mem.Pa_t {
	return p.ppn()
}

/// Flags returns the permission/software bits of this PTE with the PPN
/// masked off, for callers that need to reproduce a mapping's exact
/// flags elsewhere (fork propagating a CODE/DATA segment's PTE_R/PTE_W/
/// PTE_X into a child's page table).
func (p Pte_t) Flags() Pte_t {
	return p & Pte_t((1<<10)-1)
}

func mkpte(pa mem.Pa_t, flags Pte_t) Pte_t {
	return Pte_t(uint64(pa>>mem.PGSHIFT)<<10) | flags
}

// Permission bits passed to ProtToType, independent of the PTE encoding
// (prot_to_type's PROT_* inputs in vmm.c).
const (
	PROT_READ  = 1 << 0
	PROT_WRITE = 1 << 1
	PROT_EXEC  = 1 << 2
	PROT_COW   = 1 << 3
)

/// ProtToType is the canonical PROT_*->Pte_t flag assembler (prot_to_type):
/// every mapping call site builds its flags through this instead of
/// hand-assembling PTE_R|PTE_W|... so the user/supervisor and CoW bits
/// are set in exactly one place.
func ProtToType(prot int, isUser bool) Pte_t {
	var flags Pte_t
	if prot&PROT_READ != 0 {
		flags |= PTE_R
	}
	if prot&PROT_WRITE != 0 {
		flags |= PTE_W
	}
	if prot&PROT_EXEC != 0 {
		flags |= PTE_X
	}
	if prot&PROT_COW != 0 {
		flags |= PTE_COW
	}
	if isUser {
		flags |= PTE_U
	}
	return flags | PTE_V
}

/// Pagetable_t is the root of a 3-level SV39 page table, identified by
/// the physical page that holds its level-2 (root) table.
type Pagetable_t struct {
	Root mem.Pa_t
}

/// NewPagetable allocates a zeroed root page table.
func NewPagetable(ram *mem.RAM_t) (*Pagetable_t, defs.Err_t) {
	pa, ok := ram.AllocPage()
	if !ok {
		return nil, defs.ENOMEM
	}
	return &Pagetable_t{Root: pa}, 0
}

func vpn(va uintptr, level int) uintptr {
	shift := uint(mem.PGSHIFT) + uint(levelBits*level)
	return (va >> shift) & vpnMask
}

func readPte(ram *mem.RAM_t, table mem.Pa_t, idx uintptr) Pte_t {
	b := ram.Bytes(table)
	return Pte_t(binary.LittleEndian.Uint64(b[idx*pteBytes:]))
}

func writePte(ram *mem.RAM_t, table mem.Pa_t, idx uintptr, pte Pte_t) {
	b := ram.Bytes(table)
	binary.LittleEndian.PutUint64(b[idx*pteBytes:], uint64(pte))
}

// walk returns the level-0 PTE slot address (table, index) for va,
// allocating intermediate tables on the way down when alloc is true.
func (pt *Pagetable_t) walk(ram *mem.RAM_t, va uintptr, alloc bool) (mem.Pa_t, uintptr, defs.Err_t) {
	table := pt.Root
	for level := 2; level > 0; level-- {
		idx := vpn(va, level)
		pte := readPte(ram, table, idx)
		if pte&PTE_V == 0 {
			if !alloc {
				return 0, 0, defs.EFAULT
			}
			child, ok := ram.AllocPage()
			if !ok {
				return 0, 0, defs.ENOMEM
			}
			writePte(ram, table, idx, mkpte(child, PTE_V))
			table = child
		} else {
			table = pte.ppn()
		}
	}
	return table, vpn(va, 0), 0
}

/// Map installs a VA->PA translation with the given permission flags
/// (PTE_V is added if absent). It allocates intermediate page table
/// levels as needed. A target PTE that is already valid is a kernel bug
/// (spec §4.2's "fails if a target PTE is already valid", classified
/// kernel-fatal alongside a corrupted directory) -- callers that mean to
/// replace an existing mapping must Unmap it first, as CoW resolution
/// does.
func (pt *Pagetable_t) Map(ram *mem.RAM_t, va uintptr, pa mem.Pa_t, flags Pte_t) defs.Err_t {
	table, idx, err := pt.walk(ram, va, true)
	if err != 0 {
		return err
	}
	if readPte(ram, table, idx)&PTE_V != 0 {
		caller.Fatalf("vm: double-map at va 0x%x", va)
	}
	writePte(ram, table, idx, mkpte(pa, flags|PTE_V))
	return 0
}

/// Unmap clears the mapping for va, if any. It is not an error to unmap
/// an already-unmapped page.
func (pt *Pagetable_t) Unmap(ram *mem.RAM_t, va uintptr) {
	table, idx, err := pt.walk(ram, va, false)
	if err != 0 {
		return
	}
	writePte(ram, table, idx, 0)
}

/// Lookup returns the PTE mapping va, or ok=false if none exists.
func (pt *Pagetable_t) Lookup(ram *mem.RAM_t, va uintptr) (Pte_t, bool) {
	table, idx, err := pt.walk(ram, va, false)
	if err != 0 {
		return 0, false
	}
	pte := readPte(ram, table, idx)
	if pte&PTE_V == 0 {
		return 0, false
	}
	return pte, true
}

/// SetFlags rewrites the flags of an existing mapping, keeping its
/// physical page. Fork uses it to turn a parent's heap page into a
/// PTE_COW mapping; every flag not passed in is cleared.
func (pt *Pagetable_t) SetFlags(ram *mem.RAM_t, va uintptr, flags Pte_t) defs.Err_t {
	table, idx, err := pt.walk(ram, va, false)
	if err != 0 {
		return err
	}
	pte := readPte(ram, table, idx)
	writePte(ram, table, idx, mkpte(pte.ppn(), flags|PTE_V))
	return 0
}

/// FlushRange is a no-op in the hosted simulator: there is no hardware
/// TLB to shoot down. It mirrors the teacher's Tlbshoot; nothing in the
/// kernel calls it, and Unmap and SetFlags change PTEs without it.
func FlushRange(va uintptr, n int) {}
