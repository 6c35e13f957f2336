// Package elftest builds small synthetic ELF images for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const BaseAddr = 0x400000

type Symbol struct {
	Name  string
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

type Config struct {
	Class   elf.Class
	Order   binary.ByteOrder
	Machine elf.Machine
	Text    []byte
	// Note adds a SHT_NOTE section and a PT_NOTE segment covering it.
	Note       []byte
	Symbols    []Symbol
	DynSymbols []Symbol
}

// Image is a built file plus the positions tests need to cross-check reads.
type Image struct {
	Bytes    []byte
	Class    elf.Class
	Order    binary.ByteOrder
	Entry    uint64
	Index    map[string]int
	Sections []elf.SectionHeader
	Progs    []elf.ProgHeader
}

// Minimal is a 64-bit little-endian executable with text, a note and two symbols.
func Minimal() Config {
	return Config{
		Text: []byte{0x48, 0x31, 0xff, 0xb8, 0x3c, 0x00, 0x00, 0x00, 0x0f, 0x05, 0xc3},
		Note: []byte{4, 0, 0, 0, 4, 0, 0, 0, 1, 0, 0, 0, 'G', 'N', 'U', 0, 0xde, 0xad, 0xbe, 0xef},
		Symbols: []Symbol{
			{Name: "_start", Info: elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC), Shndx: 1, Value: 0, Size: 11},
			{Name: "counter", Info: elf.ST_INFO(elf.STB_LOCAL, elf.STT_OBJECT), Shndx: 1, Value: 4, Size: 4},
		},
	}
}

type strtab struct {
	buf bytes.Buffer
}

func newStrtab() *strtab {
	s := new(strtab)
	s.buf.WriteByte(0)
	return s
}

func (s *strtab) add(name string) uint32 {
	if name == "" {
		return 0
	}
	off := uint32(s.buf.Len())
	s.buf.WriteString(name)
	s.buf.WriteByte(0)
	return off
}

type section struct {
	name  string
	hdr   elf.SectionHeader
	data  []byte
	align uint64
}

func Build(cfg Config) *Image {
	if cfg.Class == elf.ELFCLASSNONE {
		cfg.Class = elf.ELFCLASS64
	}
	if cfg.Order == nil {
		cfg.Order = binary.LittleEndian
	}
	if cfg.Machine == elf.EM_NONE {
		cfg.Machine = elf.EM_X86_64
	}
	is64 := cfg.Class == elf.ELFCLASS64
	ehsize, phentsize, shentsize, symsize := uint64(52), uint64(32), uint64(40), uint64(elf.Sym32Size)
	if is64 {
		ehsize, phentsize, shentsize, symsize = 64, 56, 64, elf.Sym64Size
	}

	shstr := newStrtab()
	sections := []*section{{}}
	add := func(name string, typ elf.SectionType, flags elf.SectionFlag, data []byte, align uint64) *section {
		s := &section{name: name, data: data, align: align}
		s.hdr = elf.SectionHeader{Type: typ, Flags: flags, Addralign: align}
		s.hdr.Name = name
		sections = append(sections, s)
		return s
	}
	text := add(".text", elf.SHT_PROGBITS, elf.SHF_ALLOC|elf.SHF_EXECINSTR, cfg.Text, 16)
	var note *section
	if cfg.Note != nil {
		note = add(".note.test", elf.SHT_NOTE, elf.SHF_ALLOC, cfg.Note, 4)
	}
	symtab := func(tabName, strName string, typ elf.SectionType, syms []Symbol) {
		strs := newStrtab()
		var buf bytes.Buffer
		writeSym(&buf, cfg.Order, is64, 0, Symbol{})
		for _, sym := range syms {
			writeSym(&buf, cfg.Order, is64, strs.add(sym.Name), sym)
		}
		add(strName, elf.SHT_STRTAB, 0, strs.buf.Bytes(), 1)
		tab := add(tabName, typ, 0, buf.Bytes(), 8)
		tab.hdr.Link = uint32(len(sections) - 2)
		tab.hdr.Info = 1
		tab.hdr.Entsize = symsize
		if typ == elf.SHT_DYNSYM {
			tab.hdr.Flags = elf.SHF_ALLOC
		}
	}
	if len(cfg.Symbols) > 0 {
		symtab(".symtab", ".strtab", elf.SHT_SYMTAB, cfg.Symbols)
	}
	if len(cfg.DynSymbols) > 0 {
		symtab(".dynsym", ".dynstr", elf.SHT_DYNSYM, cfg.DynSymbols)
	}
	shstrtab := add(".shstrtab", elf.SHT_STRTAB, 0, nil, 1)
	names := make([]uint32, len(sections))
	for i, s := range sections[1:] {
		names[i+1] = shstr.add(s.name)
	}
	shstrtab.data = shstr.buf.Bytes()

	phnum := uint64(1)
	if note != nil {
		phnum++
	}
	off := ehsize + phnum*phentsize
	for _, s := range sections[1:] {
		off = align(off, s.align)
		s.hdr.Offset = off
		s.hdr.Size = uint64(len(s.data))
		s.hdr.FileSize = s.hdr.Size
		if s.hdr.Flags&elf.SHF_ALLOC != 0 {
			s.hdr.Addr = BaseAddr + off
		}
		off += s.hdr.Size
	}
	shoff := align(off, 8)

	img := &Image{
		Class: cfg.Class,
		Order: cfg.Order,
		Entry: text.hdr.Addr,
		Index: make(map[string]int),
	}
	progs := []elf.ProgHeader{{
		Type:   elf.PT_LOAD,
		Flags:  elf.PF_R | elf.PF_X,
		Off:    0,
		Vaddr:  BaseAddr,
		Paddr:  BaseAddr,
		Filesz: text.hdr.Offset + text.hdr.Size,
		Memsz:  text.hdr.Offset + text.hdr.Size,
		Align:  0x1000,
	}}
	if note != nil {
		progs = append(progs, elf.ProgHeader{
			Type:   elf.PT_NOTE,
			Flags:  elf.PF_R,
			Off:    note.hdr.Offset,
			Vaddr:  note.hdr.Addr,
			Paddr:  note.hdr.Addr,
			Filesz: note.hdr.Size,
			Memsz:  note.hdr.Size,
			Align:  4,
		})
	}

	var buf bytes.Buffer
	ident := [elf.EI_NIDENT]byte{0x7f, 'E', 'L', 'F', byte(cfg.Class), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)}
	if cfg.Order == binary.BigEndian {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	}
	if is64 {
		write(&buf, cfg.Order, elf.Header64{
			Ident: ident, Type: uint16(elf.ET_EXEC), Machine: uint16(cfg.Machine), Version: uint32(elf.EV_CURRENT),
			Entry: img.Entry, Phoff: ehsize, Shoff: shoff, Ehsize: uint16(ehsize),
			Phentsize: uint16(phentsize), Phnum: uint16(phnum), Shentsize: uint16(shentsize),
			Shnum: uint16(len(sections)), Shstrndx: uint16(len(sections) - 1),
		})
		for _, p := range progs {
			write(&buf, cfg.Order, elf.Prog64{
				Type: uint32(p.Type), Flags: uint32(p.Flags), Off: p.Off, Vaddr: p.Vaddr, Paddr: p.Paddr,
				Filesz: p.Filesz, Memsz: p.Memsz, Align: p.Align,
			})
		}
	} else {
		write(&buf, cfg.Order, elf.Header32{
			Ident: ident, Type: uint16(elf.ET_EXEC), Machine: uint16(cfg.Machine), Version: uint32(elf.EV_CURRENT),
			Entry: uint32(img.Entry), Phoff: uint32(ehsize), Shoff: uint32(shoff), Ehsize: uint16(ehsize),
			Phentsize: uint16(phentsize), Phnum: uint16(phnum), Shentsize: uint16(shentsize),
			Shnum: uint16(len(sections)), Shstrndx: uint16(len(sections) - 1),
		})
		for _, p := range progs {
			write(&buf, cfg.Order, elf.Prog32{
				Type: uint32(p.Type), Off: uint32(p.Off), Vaddr: uint32(p.Vaddr), Paddr: uint32(p.Paddr),
				Filesz: uint32(p.Filesz), Memsz: uint32(p.Memsz), Flags: uint32(p.Flags), Align: uint32(p.Align),
			})
		}
	}
	for _, s := range sections[1:] {
		pad(&buf, s.hdr.Offset)
		buf.Write(s.data)
	}
	pad(&buf, shoff)
	for i, s := range sections {
		h := s.hdr
		if is64 {
			write(&buf, cfg.Order, elf.Section64{
				Name: names[i], Type: uint32(h.Type), Flags: uint64(h.Flags), Addr: h.Addr, Off: h.Offset,
				Size: h.Size, Link: h.Link, Info: h.Info, Addralign: h.Addralign, Entsize: h.Entsize,
			})
		} else {
			write(&buf, cfg.Order, elf.Section32{
				Name: names[i], Type: uint32(h.Type), Flags: uint32(h.Flags), Addr: uint32(h.Addr), Off: uint32(h.Offset),
				Size: uint32(h.Size), Link: h.Link, Info: h.Info, Addralign: uint32(h.Addralign), Entsize: uint32(h.Entsize),
			})
		}
		img.Sections = append(img.Sections, h)
		if i > 0 {
			img.Index[s.name] = i
		}
	}
	img.Bytes = buf.Bytes()
	img.Progs = progs
	return img
}

// WriteFile stores the image in a fresh temporary directory and returns its path.
func (img *Image) WriteFile(tb testing.TB) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "a.out")
	if err := os.WriteFile(path, img.Bytes, 0o755); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

func writeSym(buf *bytes.Buffer, order binary.ByteOrder, is64 bool, name uint32, sym Symbol) {
	if is64 {
		write(buf, order, elf.Sym64{Name: name, Info: sym.Info, Other: sym.Other, Shndx: sym.Shndx, Value: sym.Value, Size: sym.Size})
	} else {
		write(buf, order, elf.Sym32{Name: name, Value: uint32(sym.Value), Size: uint32(sym.Size), Info: sym.Info, Other: sym.Other, Shndx: sym.Shndx})
	}
}

func write(buf *bytes.Buffer, order binary.ByteOrder, v any) {
	if err := binary.Write(buf, order, v); err != nil {
		panic(err)
	}
}

func pad(buf *bytes.Buffer, off uint64) {
	for uint64(buf.Len()) < off {
		buf.WriteByte(0)
	}
}

func align(v, a uint64) uint64 {
	if a <= 1 {
		return v
	}
	return (v + a - 1) &^ (a - 1)
}
