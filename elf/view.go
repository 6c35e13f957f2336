package elf

import (
	"github.com/wnxd/composer/internal/fault"
	"github.com/wnxd/composer/internal/layout"
)

type (
	HeaderField  string
	SectionField string
	ProgramField string
	SymbolField  string
)

const (
	EType      HeaderField = "e_type"
	EMachine   HeaderField = "e_machine"
	EVersion   HeaderField = "e_version"
	EEntry     HeaderField = "e_entry"
	EPhoff     HeaderField = "e_phoff"
	EShoff     HeaderField = "e_shoff"
	EFlags     HeaderField = "e_flags"
	EEhsize    HeaderField = "e_ehsize"
	EPhentsize HeaderField = "e_phentsize"
	EPhnum     HeaderField = "e_phnum"
	EShentsize HeaderField = "e_shentsize"
	EShnum     HeaderField = "e_shnum"
	EShstrndx  HeaderField = "e_shstrndx"
)

const (
	ShName      SectionField = "sh_name"
	ShType      SectionField = "sh_type"
	ShFlags     SectionField = "sh_flags"
	ShAddr      SectionField = "sh_addr"
	ShOffset    SectionField = "sh_offset"
	ShSize      SectionField = "sh_size"
	ShLink      SectionField = "sh_link"
	ShInfo      SectionField = "sh_info"
	ShAddralign SectionField = "sh_addralign"
	ShEntsize   SectionField = "sh_entsize"
)

const (
	PType   ProgramField = "p_type"
	PFlags  ProgramField = "p_flags"
	POffset ProgramField = "p_offset"
	PVaddr  ProgramField = "p_vaddr"
	PPaddr  ProgramField = "p_paddr"
	PFilesz ProgramField = "p_filesz"
	PMemsz  ProgramField = "p_memsz"
	PAlign  ProgramField = "p_align"
)

const (
	StName  SymbolField = "st_name"
	StInfo  SymbolField = "st_info"
	StOther SymbolField = "st_other"
	StShndx SymbolField = "st_shndx"
	StValue SymbolField = "st_value"
	StSize  SymbolField = "st_size"
)

// FieldValue is one decoded field of a record.
type FieldValue = layout.Value

// HeaderFields and its siblings list the field names of each record kind in
// ELF64 layout order.
func HeaderFields() []HeaderField   { return names[HeaderField](layout.KindFileHeader) }
func SectionFields() []SectionField { return names[SectionField](layout.KindSectionHeader) }
func ProgramFields() []ProgramField { return names[ProgramField](layout.KindProgramHeader) }
func SymbolFields() []SymbolField   { return names[SymbolField](layout.KindSymbol) }

func names[T ~string](kind layout.Kind) []T {
	list := layout.Names(kind)
	out := make([]T, len(list))
	for i, name := range list {
		out[i] = T(name)
	}
	return out
}

// record is the shared plumbing behind every view: reads and writes go
// through a fresh conn addressed by kind and idx.
type record struct {
	src  source
	kind layout.Kind
	idx  layout.Index
}

func (r record) get(name string) (v uint64, err error) {
	err = use(r.src, false, func(c conn) (err error) {
		v, err = c.ReadField(r.kind, name, r.idx)
		return
	})
	return
}

func (r record) set(name string, v uint64) error {
	return use(r.src, true, func(c conn) error {
		return c.WriteField(r.kind, name, r.idx, v)
	})
}

func (r record) values() (values []FieldValue, err error) {
	err = use(r.src, false, func(c conn) (err error) {
		values, err = c.Values(r.kind, r.idx)
		return
	})
	return
}

type FileHeader struct {
	r record
}

func (h FileHeader) Get(name HeaderField) (uint64, error) {
	return h.r.get(string(name))
}

func (h FileHeader) Set(name HeaderField, v uint64) error {
	return h.r.set(string(name), v)
}

func (h FileHeader) Fields() ([]FieldValue, error) {
	return h.r.values()
}

func (h FileHeader) Ident() Ident {
	return Ident{h.r.src}
}

// Ident is the 16-byte e_ident array.
type Ident struct {
	src source
}

func (id Ident) Len() int {
	return EI_NIDENT
}

func (id Ident) Bytes() (ident [EI_NIDENT]byte, err error) {
	err = use(id.src, false, func(c conn) (err error) {
		ident, err = c.ReadIdent()
		return
	})
	return
}

func (id Ident) At(i int) (byte, error) {
	if i < 0 || i >= EI_NIDENT {
		return 0, fault.Precondition("e_ident", "index %d out of range", i)
	}
	ident, err := id.Bytes()
	if err != nil {
		return 0, err
	}
	return ident[i], nil
}

func (id Ident) Set(i int, v byte) error {
	if i < 0 || i >= EI_NIDENT {
		return fault.Precondition("e_ident", "index %d out of range", i)
	}
	return use(id.src, true, func(c conn) error {
		ident, err := c.ReadIdent()
		if err != nil {
			return err
		}
		ident[i] = v
		return c.WriteIdent(ident)
	})
}

type SectionHeader struct {
	r record
}

func newSectionHeader(src source, i int) SectionHeader {
	return SectionHeader{record{src, layout.KindSectionHeader, layout.Index{Slot: i}}}
}

func (h SectionHeader) Index() int {
	return h.r.idx.Slot
}

func (h SectionHeader) Get(name SectionField) (uint64, error) {
	return h.r.get(string(name))
}

func (h SectionHeader) Set(name SectionField, v uint64) error {
	return h.r.set(string(name), v)
}

func (h SectionHeader) Fields() ([]FieldValue, error) {
	return h.r.values()
}

// Name resolves sh_name through the section name table.
func (h SectionHeader) Name() (name string, err error) {
	err = use(h.r.src, false, func(c conn) (err error) {
		name, err = c.sectionName(h.Index())
		return
	})
	return
}

type ProgramHeader struct {
	r record
}

func newProgramHeader(src source, i int) ProgramHeader {
	return ProgramHeader{record{src, layout.KindProgramHeader, layout.Index{Slot: i}}}
}

func (h ProgramHeader) Index() int {
	return h.r.idx.Slot
}

func (h ProgramHeader) Get(name ProgramField) (uint64, error) {
	return h.r.get(string(name))
}

func (h ProgramHeader) Set(name ProgramField, v uint64) error {
	return h.r.set(string(name), v)
}

func (h ProgramHeader) Fields() ([]FieldValue, error) {
	return h.r.values()
}

// Symbol is entry Slot of the symbol table in section Table. The section's
// type is checked on every access.
type Symbol struct {
	r record
}

func newSymbol(src source, table, slot int) Symbol {
	return Symbol{record{src, layout.KindSymbol, layout.Index{Table: table, Slot: slot}}}
}

func (s Symbol) Section() int {
	return s.r.idx.Table
}

func (s Symbol) Index() int {
	return s.r.idx.Slot
}

func (s Symbol) Get(name SymbolField) (uint64, error) {
	return s.r.get(string(name))
}

func (s Symbol) Set(name SymbolField, v uint64) error {
	return s.r.set(string(name), v)
}

func (s Symbol) Fields() ([]FieldValue, error) {
	return s.r.values()
}

// Name resolves st_name through the section named .strtab, whichever table
// the symbol lives in.
func (s Symbol) Name() (name string, err error) {
	err = use(s.r.src, false, func(c conn) error {
		off, err := c.ReadField(layout.KindSymbol, string(StName), s.r.idx)
		if err != nil {
			return err
		}
		table, err := c.strtab()
		if err != nil {
			return err
		}
		name, err = c.cstring(table, off)
		return err
	})
	return
}

// LinkedName resolves st_name through the string table named by the
// containing section's sh_link. This is the right table for .dynsym.
func (s Symbol) LinkedName() (name string, err error) {
	err = use(s.r.src, false, func(c conn) error {
		off, err := c.ReadField(layout.KindSymbol, string(StName), s.r.idx)
		if err != nil {
			return err
		}
		link, err := c.section(s.Section(), ShLink)
		if err != nil {
			return err
		}
		name, err = c.stringAt(int(link), off)
		return err
	})
	return
}
