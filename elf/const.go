package elf

import stdelf "debug/elf"

const (
	EI_NIDENT  = stdelf.EI_NIDENT
	ELFMAG     = stdelf.ELFMAG
	SHN_UNDEF  = stdelf.SHN_UNDEF
	SHN_XINDEX = stdelf.SHN_XINDEX
	SHT_SYMTAB = stdelf.SHT_SYMTAB
	SHT_DYNSYM = stdelf.SHT_DYNSYM
	PT_LOAD    = stdelf.PT_LOAD
	PT_NOTE    = stdelf.PT_NOTE
	PT_DYNAMIC = stdelf.PT_DYNAMIC
	PF_X       = stdelf.PF_X
	PF_W       = stdelf.PF_W
	PF_R       = stdelf.PF_R
)

const pageSize = 0x1000
