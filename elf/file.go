// Package elf edits ELF32 and ELF64 files in place. Views address records by
// index and reach the file on every access, so they always reflect its
// current bytes.
package elf

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/wnxd/composer/internal/fault"
	"github.com/wnxd/composer/internal/layout"
)

type options struct {
	force bool
	fs    afero.Fs
}

type Option func(*options)

// WithForce skips the magic check in Open.
func WithForce() Option {
	return func(o *options) { o.force = true }
}

// WithFs reads and writes through fs instead of the host file system.
func WithFs(fs afero.Fs) Option {
	return func(o *options) { o.fs = fs }
}

type File struct {
	image
	path string
	fs   afero.Fs
}

func Open(path string, opts ...Option) (*File, error) {
	o := options{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}
	f := &File{
		image: image{src: &pathSource{fs: o.fs, path: path}},
		path:  path,
		fs:    o.fs,
	}
	ident, err := f.Header().Ident().Bytes()
	var ferr *FormatError
	if errors.As(err, &ferr) && o.force {
		return f, nil
	} else if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !o.force && !bytes.HasPrefix(ident[:], []byte(ELFMAG)) {
		return nil, fmt.Errorf("open %s: %w", path, fault.Format(0, "bad magic % x", ident[:4]))
	}
	return f, nil
}

func (f *File) Path() string {
	return f.path
}

// image holds the operations shared by File and Session.
type image struct {
	src source
}

func (img image) Header() FileHeader {
	return FileHeader{record{src: img.src, kind: layout.KindFileHeader}}
}

func (img image) count(name HeaderField) (n int, err error) {
	err = use(img.src, false, func(c conn) error {
		v, err := c.header(name)
		n = int(v)
		return err
	})
	return
}

func (img image) SectionHeaders() ([]SectionHeader, error) {
	n, err := img.count(EShnum)
	if err != nil {
		return nil, err
	}
	list := make([]SectionHeader, n)
	for i := range list {
		list[i] = newSectionHeader(img.src, i)
	}
	return list, nil
}

func (img image) Sections() ([]Section, error) {
	hdrs, err := img.SectionHeaders()
	if err != nil {
		return nil, err
	}
	list := make([]Section, len(hdrs))
	for i, h := range hdrs {
		list[i] = Section{h}
	}
	return list, nil
}

func (img image) ProgramHeaders() ([]ProgramHeader, error) {
	n, err := img.count(EPhnum)
	if err != nil {
		return nil, err
	}
	list := make([]ProgramHeader, n)
	for i := range list {
		list[i] = newProgramHeader(img.src, i)
	}
	return list, nil
}

func (img image) Segments() ([]Segment, error) {
	hdrs, err := img.ProgramHeaders()
	if err != nil {
		return nil, err
	}
	list := make([]Segment, len(hdrs))
	for i, h := range hdrs {
		list[i] = Segment{h}
	}
	return list, nil
}

func (img image) Section(i int) (Section, error) {
	n, err := img.count(EShnum)
	if err != nil {
		return Section{}, err
	} else if i < 0 || i >= n {
		return Section{}, fault.Precondition("section", "index %d out of range [0, %d)", i, n)
	}
	return Section{newSectionHeader(img.src, i)}, nil
}

func (img image) Segment(i int) (Segment, error) {
	n, err := img.count(EPhnum)
	if err != nil {
		return Segment{}, err
	} else if i < 0 || i >= n {
		return Segment{}, fault.Precondition("segment", "index %d out of range [0, %d)", i, n)
	}
	return Segment{newProgramHeader(img.src, i)}, nil
}

func (img image) SectionByName(name string) (sec Section, err error) {
	err = use(img.src, false, func(c conn) error {
		shnum, err := c.header(EShnum)
		if err != nil {
			return err
		}
		for i := 0; i < int(shnum); i++ {
			s, err := c.sectionName(i)
			if err != nil {
				return err
			}
			if s == name {
				sec = Section{newSectionHeader(img.src, i)}
				return nil
			}
		}
		return fault.NotFound("section " + name)
	})
	return
}

// ResolveSectionName reads the string at off in the section name table.
func (img image) ResolveSectionName(off uint64) (name string, err error) {
	err = use(img.src, false, func(c conn) error {
		ndx, err := c.shstrndx()
		if err != nil {
			return err
		}
		table, err := c.section(ndx, ShOffset)
		if err != nil {
			return err
		}
		name, err = c.cstring(table, off)
		return err
	})
	return
}

// ResolveSymbolName reads the string at off in the section named .strtab.
func (img image) ResolveSymbolName(off uint64) (name string, err error) {
	err = use(img.src, false, func(c conn) error {
		table, err := c.strtab()
		if err != nil {
			return err
		}
		name, err = c.cstring(table, off)
		return err
	})
	return
}

// ResolveString reads the string at off in the string table held by section table.
func (img image) ResolveString(table int, off uint64) (s string, err error) {
	err = use(img.src, false, func(c conn) error {
		shnum, err := c.header(EShnum)
		if err != nil {
			return err
		} else if table < 0 || uint64(table) >= shnum {
			return fault.Precondition("resolve string", "section %d out of range [0, %d)", table, shnum)
		}
		s, err = c.stringAt(table, off)
		return err
	})
	return
}

// FindSymbol searches every symbol table, resolving names through each
// table's linked string table, and returns the first match.
func (img image) FindSymbol(name string) (sym Symbol, err error) {
	err = use(img.src, false, func(c conn) error {
		shnum, err := c.header(EShnum)
		if err != nil {
			return err
		}
		for i := 0; i < int(shnum); i++ {
			typ, err := c.section(i, ShType)
			if err != nil {
				return err
			}
			if !layout.IsSymbolTable(typ) {
				continue
			}
			ent, err := c.section(i, ShEntsize)
			if err != nil {
				return err
			} else if ent == 0 {
				continue
			}
			size, err := c.section(i, ShSize)
			if err != nil {
				return err
			}
			link, err := c.section(i, ShLink)
			if err != nil {
				return err
			}
			table, err := c.section(int(link), ShOffset)
			if err != nil {
				return err
			}
			for slot := 0; slot < int(size/ent); slot++ {
				idx := layout.Index{Table: i, Slot: slot}
				off, err := c.ReadField(layout.KindSymbol, string(StName), idx)
				if err != nil {
					return err
				}
				if off == 0 {
					continue
				}
				s, err := c.cstring(table, off)
				if err != nil {
					return err
				}
				if s == name {
					sym = newSymbol(img.src, i, slot)
					return nil
				}
			}
		}
		return fault.NotFound("symbol " + name)
	})
	return
}

// InsertAt splices data into the file at off, shifting everything after it.
// Offsets stored in headers are left as they are.
func (img image) InsertAt(off int64, data []byte) error {
	return img.src.do(true, func(h handle) error {
		info, err := h.Stat()
		if err != nil {
			return err
		}
		if off < 0 || off > info.Size() {
			return fault.Precondition("insert", "offset %d outside [0, %d]", off, info.Size())
		}
		tail := make([]byte, info.Size()-off)
		if err = layout.ReadFull(h, tail, off); err != nil {
			return err
		}
		_, err = h.WriteAt(append(bytes.Clone(data), tail...), off)
		return err
	})
}

// OverwriteAt replaces len(data) bytes at off, extending the file if needed.
func (img image) OverwriteAt(off int64, data []byte) error {
	if off < 0 {
		return fault.Precondition("overwrite", "negative offset %d", off)
	}
	return img.src.do(true, func(h handle) error {
		_, err := h.WriteAt(data, off)
		return err
	})
}

func (img image) Size() (size int64, err error) {
	err = img.src.do(false, func(h handle) error {
		info, err := h.Stat()
		if err == nil {
			size = info.Size()
		}
		return err
	})
	return
}

// ReadBytes returns up to n bytes from off; fewer when the file ends first.
func (img image) ReadBytes(off int64, n int) (data []byte, err error) {
	if off < 0 || n < 0 {
		return nil, fault.Precondition("read", "invalid range %d+%d", off, n)
	}
	err = img.src.do(false, func(h handle) error {
		info, err := h.Stat()
		if err != nil {
			return err
		}
		if off >= info.Size() {
			data = []byte{}
			return nil
		}
		data = make([]byte, min(int64(n), info.Size()-off))
		m, err := h.ReadAt(data, off)
		data = data[:m]
		if isEOF(err) {
			return nil
		}
		return err
	})
	return
}
