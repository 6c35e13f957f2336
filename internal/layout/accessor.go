package layout

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"

	"github.com/wnxd/composer/internal/fault"
)

type Handle interface {
	io.ReaderAt
	io.WriterAt
}

// Index addresses a record inside its table. Slot is the record number;
// Table is the containing section index and only matters for symbols.
type Index struct {
	Table, Slot int
}

type Value struct {
	Name  string
	Value uint64
}

// Accessor reads and writes record fields at their file offsets.
type Accessor struct {
	h     Handle
	class elf.Class
	order binary.ByteOrder
}

// New inspects e_ident to pick the layout class and byte order. Anything that
// is not explicitly ELFCLASS32 or ELFDATA2MSB is treated as 64-bit little-endian.
func New(h Handle) (*Accessor, error) {
	var ident [elf.EI_NIDENT]byte
	if err := ReadFull(h, ident[:], 0); err != nil {
		return nil, err
	}
	a := &Accessor{h: h, class: elf.ELFCLASS64, order: binary.LittleEndian}
	if elf.Class(ident[elf.EI_CLASS]) == elf.ELFCLASS32 {
		a.class = elf.ELFCLASS32
	}
	if elf.Data(ident[elf.EI_DATA]) == elf.ELFDATA2MSB {
		a.order = binary.BigEndian
	}
	return a, nil
}

func (a *Accessor) Class() elf.Class {
	return a.class
}

func (a *Accessor) ByteOrder() binary.ByteOrder {
	return a.order
}

func (a *Accessor) ReadIdent() (ident [elf.EI_NIDENT]byte, err error) {
	err = ReadFull(a.h, ident[:], 0)
	return
}

func (a *Accessor) WriteIdent(ident [elf.EI_NIDENT]byte) error {
	_, err := a.h.WriteAt(ident[:], 0)
	return err
}

func (a *Accessor) ReadField(kind Kind, name string, idx Index) (uint64, error) {
	f, err := a.field(kind, name)
	if err != nil {
		return 0, err
	}
	base, err := a.Base(kind, idx)
	if err != nil {
		return 0, err
	}
	return a.read(f, base)
}

// CheckField reports whether WriteField would accept v for name without
// touching the file.
func (a *Accessor) CheckField(kind Kind, name string, v uint64) error {
	_, _, err := a.encode(kind, name, v)
	return err
}

func (a *Accessor) encode(kind Kind, name string, v uint64) (f Field, buf [8]byte, err error) {
	if f, err = a.field(kind, name); err != nil {
		return
	}
	if !f.encode(a.order, buf[:f.Width], v) {
		err = fault.Precondition("write "+name, "value 0x%X does not fit in %d bytes", v, f.Width)
	}
	return
}

func (a *Accessor) WriteField(kind Kind, name string, idx Index, v uint64) error {
	f, buf, err := a.encode(kind, name, v)
	if err != nil {
		return err
	}
	base, err := a.Base(kind, idx)
	if err != nil {
		return err
	}
	_, err = a.h.WriteAt(buf[:f.Width], base+int64(f.Offset))
	return err
}

// Values decodes the whole record with one read.
func (a *Accessor) Values(kind Kind, idx Index) ([]Value, error) {
	s := Lookup(a.class, kind)
	base, err := a.Base(kind, idx)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, s.Size)
	if err = ReadFull(a.h, buf, base); err != nil {
		return nil, err
	}
	obj := s.typ.New()
	if err = binary.Read(bytes.NewReader(buf), a.order, obj); err != nil {
		return nil, err
	}
	values := make([]Value, len(s.fields))
	for i, f := range s.fields {
		values[i] = Value{Name: f.Name, Value: f.get(obj)}
	}
	return values, nil
}

// Base returns the file offset of the record addressed by idx.
func (a *Accessor) Base(kind Kind, idx Index) (int64, error) {
	switch kind {
	case KindFileHeader:
		return 0, nil
	case KindSectionHeader:
		return a.entry(KindFileHeader, "e_shoff", "e_shentsize", 0, idx.Slot)
	case KindProgramHeader:
		return a.entry(KindFileHeader, "e_phoff", "e_phentsize", 0, idx.Slot)
	case KindSymbol:
		sh, err := a.Base(KindSectionHeader, Index{Slot: idx.Table})
		if err != nil {
			return 0, err
		}
		typ, err := a.get(KindSectionHeader, "sh_type", sh)
		if err != nil {
			return 0, err
		}
		if !IsSymbolTable(typ) {
			return 0, fault.Precondition("symbol access", "section %d is %v, not a symbol table", idx.Table, elf.SectionType(typ))
		}
		ent, err := a.get(KindSectionHeader, "sh_entsize", sh)
		if err != nil {
			return 0, err
		} else if ent == 0 {
			return 0, fault.Format(sh, "section %d has zero sh_entsize", idx.Table)
		}
		return a.entry(KindSectionHeader, "sh_offset", "sh_entsize", sh, idx.Slot)
	}
	return 0, fmt.Errorf("layout: unknown kind %v", kind)
}

// entry computes off + slot*size where off and size are fields of the record at base.
func (a *Accessor) entry(kind Kind, offField, sizeField string, base int64, slot int) (int64, error) {
	if slot < 0 {
		return 0, fault.Precondition("index", "negative slot %d", slot)
	}
	off, err := a.get(kind, offField, base)
	if err != nil {
		return 0, err
	}
	size, err := a.get(kind, sizeField, base)
	if err != nil {
		return 0, err
	}
	hi, lo := bits.Mul64(size, uint64(slot))
	pos := off + lo
	if hi != 0 || pos < off || pos > math.MaxInt64 {
		return 0, fault.Format(base, "%s + %d*%s overflows", offField, slot, sizeField)
	}
	return int64(pos), nil
}

func (a *Accessor) field(kind Kind, name string) (Field, error) {
	f, ok := Lookup(a.class, kind).Field(name)
	if !ok {
		return Field{}, &fault.NoSuchFieldError{View: kind.String(), Field: name}
	}
	return f, nil
}

func (a *Accessor) get(kind Kind, name string, base int64) (uint64, error) {
	f, err := a.field(kind, name)
	if err != nil {
		return 0, err
	}
	return a.read(f, base)
}

func (a *Accessor) read(f Field, base int64) (uint64, error) {
	var buf [8]byte
	if err := ReadFull(a.h, buf[:f.Width], base+int64(f.Offset)); err != nil {
		return 0, err
	}
	return f.decode(a.order, buf[:f.Width]), nil
}

// ReadFull fills b from off; running out of file is a FormatError.
func ReadFull(r io.ReaderAt, b []byte, off int64) error {
	n, err := r.ReadAt(b, off)
	if n == len(b) {
		return nil
	} else if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &fault.FormatError{Offset: off, Reason: fmt.Sprintf("truncated: want %d bytes, got %d", len(b), n)}
	}
	return err
}

func IsSymbolTable(typ uint64) bool {
	return typ == uint64(elf.SHT_SYMTAB) || typ == uint64(elf.SHT_DYNSYM)
}
