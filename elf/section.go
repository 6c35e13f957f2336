package elf

import (
	"github.com/wnxd/composer/internal/fault"
	"github.com/wnxd/composer/internal/layout"
)

type Section struct {
	hdr SectionHeader
}

func (s Section) Header() SectionHeader {
	return s.hdr
}

func (s Section) Index() int {
	return s.hdr.Index()
}

func (s Section) Name() (string, error) {
	return s.hdr.Name()
}

// Symbols enumerates sh_size/sh_entsize entries of a SHT_SYMTAB or SHT_DYNSYM section.
func (s Section) Symbols() (syms []Symbol, err error) {
	err = use(s.hdr.r.src, false, func(c conn) error {
		typ, err := c.section(s.Index(), ShType)
		if err != nil {
			return err
		}
		if !layout.IsSymbolTable(typ) {
			return fault.Format(-1, "section %d is not a symbol table", s.Index())
		}
		ent, err := c.section(s.Index(), ShEntsize)
		if err != nil {
			return err
		} else if ent == 0 {
			return fault.Format(-1, "section %d has zero sh_entsize", s.Index())
		}
		size, err := c.section(s.Index(), ShSize)
		if err != nil {
			return err
		}
		n := size / ent
		if fsize, err := c.size(); err != nil {
			return err
		} else if n > uint64(fsize) {
			return fault.Format(-1, "section %d claims %d symbols", s.Index(), n)
		}
		syms = make([]Symbol, n)
		for i := range syms {
			syms[i] = newSymbol(s.hdr.r.src, s.Index(), i)
		}
		return nil
	})
	return
}

// RawBytes returns the section contents, truncated at end of file.
func (s Section) RawBytes() ([]byte, error) {
	return s.hdr.r.raw(string(ShOffset), string(ShSize))
}

type Segment struct {
	hdr ProgramHeader
}

func (s Segment) Header() ProgramHeader {
	return s.hdr
}

func (s Segment) Index() int {
	return s.hdr.Index()
}

// RawBytes returns p_filesz bytes from p_offset, truncated at end of file.
func (s Segment) RawBytes() ([]byte, error) {
	return s.hdr.r.raw(string(POffset), string(PFilesz))
}

// DynamicEntries decodes a PT_DYNAMIC segment. Not supported yet.
func (s Segment) DynamicEntries() error {
	return ErrNotImplemented
}

func (r record) raw(offField, sizeField string) (data []byte, err error) {
	err = use(r.src, false, func(c conn) error {
		off, err := c.ReadField(r.kind, offField, r.idx)
		if err != nil {
			return err
		}
		size, err := c.ReadField(r.kind, sizeField, r.idx)
		if err != nil {
			return err
		}
		data, err = c.span(off, size)
		return err
	})
	return
}
