package layout

type header32 struct {
	Ident     [16]byte `elf:"e_ident"`
	Type      uint16   `elf:"e_type"`
	Machine   uint16   `elf:"e_machine"`
	Version   uint32   `elf:"e_version"`
	Entry     uint32   `elf:"e_entry"`
	Phoff     uint32   `elf:"e_phoff"`
	Shoff     uint32   `elf:"e_shoff"`
	Flags     uint32   `elf:"e_flags"`
	Ehsize    uint16   `elf:"e_ehsize"`
	Phentsize uint16   `elf:"e_phentsize"`
	Phnum     uint16   `elf:"e_phnum"`
	Shentsize uint16   `elf:"e_shentsize"`
	Shnum     uint16   `elf:"e_shnum"`
	Shstrndx  uint16   `elf:"e_shstrndx"`
}

type header64 struct {
	Ident     [16]byte `elf:"e_ident"`
	Type      uint16   `elf:"e_type"`
	Machine   uint16   `elf:"e_machine"`
	Version   uint32   `elf:"e_version"`
	Entry     uint64   `elf:"e_entry"`
	Phoff     uint64   `elf:"e_phoff"`
	Shoff     uint64   `elf:"e_shoff"`
	Flags     uint32   `elf:"e_flags"`
	Ehsize    uint16   `elf:"e_ehsize"`
	Phentsize uint16   `elf:"e_phentsize"`
	Phnum     uint16   `elf:"e_phnum"`
	Shentsize uint16   `elf:"e_shentsize"`
	Shnum     uint16   `elf:"e_shnum"`
	Shstrndx  uint16   `elf:"e_shstrndx"`
}

type section32 struct {
	Name      uint32 `elf:"sh_name"`
	Type      uint32 `elf:"sh_type"`
	Flags     uint32 `elf:"sh_flags"`
	Addr      uint32 `elf:"sh_addr"`
	Offset    uint32 `elf:"sh_offset"`
	Size      uint32 `elf:"sh_size"`
	Link      uint32 `elf:"sh_link"`
	Info      uint32 `elf:"sh_info"`
	Addralign uint32 `elf:"sh_addralign"`
	Entsize   uint32 `elf:"sh_entsize"`
}

type section64 struct {
	Name      uint32 `elf:"sh_name"`
	Type      uint32 `elf:"sh_type"`
	Flags     uint64 `elf:"sh_flags"`
	Addr      uint64 `elf:"sh_addr"`
	Offset    uint64 `elf:"sh_offset"`
	Size      uint64 `elf:"sh_size"`
	Link      uint32 `elf:"sh_link"`
	Info      uint32 `elf:"sh_info"`
	Addralign uint64 `elf:"sh_addralign"`
	Entsize   uint64 `elf:"sh_entsize"`
}

// p_flags moves to the end of the record in ELF32.
type prog32 struct {
	Type   uint32 `elf:"p_type"`
	Offset uint32 `elf:"p_offset"`
	Vaddr  uint32 `elf:"p_vaddr"`
	Paddr  uint32 `elf:"p_paddr"`
	Filesz uint32 `elf:"p_filesz"`
	Memsz  uint32 `elf:"p_memsz"`
	Flags  uint32 `elf:"p_flags"`
	Align  uint32 `elf:"p_align"`
}

type prog64 struct {
	Type   uint32 `elf:"p_type"`
	Flags  uint32 `elf:"p_flags"`
	Offset uint64 `elf:"p_offset"`
	Vaddr  uint64 `elf:"p_vaddr"`
	Paddr  uint64 `elf:"p_paddr"`
	Filesz uint64 `elf:"p_filesz"`
	Memsz  uint64 `elf:"p_memsz"`
	Align  uint64 `elf:"p_align"`
}

type sym32 struct {
	Name  uint32 `elf:"st_name"`
	Value uint32 `elf:"st_value"`
	Size  uint32 `elf:"st_size"`
	Info  uint8  `elf:"st_info"`
	Other uint8  `elf:"st_other"`
	Shndx uint16 `elf:"st_shndx"`
}

type sym64 struct {
	Name  uint32 `elf:"st_name"`
	Info  uint8  `elf:"st_info"`
	Other uint8  `elf:"st_other"`
	Shndx uint16 `elf:"st_shndx"`
	Value uint64 `elf:"st_value"`
	Size  uint64 `elf:"st_size"`
}
