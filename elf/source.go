package elf

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"math"
	"os"
	"unicode/utf8"

	"github.com/spf13/afero"

	"github.com/wnxd/composer/internal/fault"
	"github.com/wnxd/composer/internal/layout"
)

type handle interface {
	io.ReaderAt
	io.WriterAt
	Stat() (fs.FileInfo, error)
}

// source hands out a handle for the duration of one operation.
type source interface {
	do(write bool, fn func(h handle) error) error
}

// pathSource opens the file anew for every operation.
type pathSource struct {
	fs   afero.Fs
	path string
}

func (s *pathSource) do(write bool, fn func(h handle) error) error {
	flag := os.O_RDONLY
	if write {
		flag = os.O_RDWR
	}
	f, err := s.fs.OpenFile(s.path, flag, 0)
	if err != nil {
		return err
	}
	err = fn(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// heldSource reuses a handle owned by a Session.
type heldSource struct {
	f      afero.File
	closed bool
}

func (s *heldSource) do(_ bool, fn func(h handle) error) error {
	if s.closed {
		return fs.ErrClosed
	}
	return fn(s.f)
}

// conn is a handle plus a layout accessor, valid for one operation.
type conn struct {
	*layout.Accessor
	h handle
}

func use(src source, write bool, fn func(c conn) error) error {
	return src.do(write, func(h handle) error {
		a, err := layout.New(h)
		if err != nil {
			return err
		}
		return fn(conn{a, h})
	})
}

func (c conn) header(name HeaderField) (uint64, error) {
	return c.ReadField(layout.KindFileHeader, string(name), layout.Index{})
}

func (c conn) section(i int, name SectionField) (uint64, error) {
	return c.ReadField(layout.KindSectionHeader, string(name), layout.Index{Slot: i})
}

func (c conn) size() (int64, error) {
	info, err := c.h.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// shstrndx resolves the section name table index, following SHN_XINDEX into section 0.
func (c conn) shstrndx() (int, error) {
	ndx, err := c.header(EShstrndx)
	if err != nil {
		return 0, err
	}
	if ndx == uint64(SHN_XINDEX) {
		if ndx, err = c.section(0, ShLink); err != nil {
			return 0, err
		}
	}
	if ndx == uint64(SHN_UNDEF) {
		return 0, fault.Format(-1, "file has no section name table")
	}
	shnum, err := c.header(EShnum)
	if err != nil {
		return 0, err
	} else if shnum != 0 && ndx >= shnum {
		return 0, fault.Format(-1, "e_shstrndx %d out of range (e_shnum %d)", ndx, shnum)
	}
	return int(ndx), nil
}

func (c conn) sectionName(i int) (string, error) {
	name, err := c.section(i, ShName)
	if err != nil {
		return "", err
	}
	ndx, err := c.shstrndx()
	if err != nil {
		return "", err
	}
	table, err := c.section(ndx, ShOffset)
	if err != nil {
		return "", err
	}
	return c.cstring(table, name)
}

// stringAt reads the string at off in the string table held by section table.
func (c conn) stringAt(table int, off uint64) (string, error) {
	base, err := c.section(table, ShOffset)
	if err != nil {
		return "", err
	}
	return c.cstring(base, off)
}

// strtab returns the file offset of the section named .strtab.
func (c conn) strtab() (uint64, error) {
	shnum, err := c.header(EShnum)
	if err != nil {
		return 0, err
	}
	for i := 0; i < int(shnum); i++ {
		name, err := c.sectionName(i)
		if err != nil {
			return 0, err
		}
		if name == ".strtab" {
			return c.section(i, ShOffset)
		}
	}
	return 0, fault.NotFound("section .strtab")
}

// cstring reads a NUL-terminated UTF-8 string at table+off. The scan stops at
// end of file.
func (c conn) cstring(table, off uint64) (string, error) {
	start := table + off
	if start < table || start > math.MaxInt64 {
		return "", fault.Format(-1, "string offset 0x%X+0x%X overflows", table, off)
	}
	var data []byte
	var buf [0x40]byte
	for pos := int64(start); ; pos += int64(len(buf)) {
		n, err := c.h.ReadAt(buf[:], pos)
		if i := bytes.IndexByte(buf[:n], 0); i != -1 {
			data = append(data, buf[:i]...)
			break
		}
		data = append(data, buf[:n]...)
		if err == nil && n > 0 {
			continue
		} else if err != nil && !isEOF(err) {
			return "", err
		} else if pos == int64(start) && n == 0 {
			return "", fault.Format(int64(start), "string table offset past end of file")
		}
		return "", fault.Format(int64(start), "unterminated string")
	}
	if !utf8.Valid(data) {
		return "", fault.Format(int64(start), "string is not valid UTF-8")
	}
	return string(data), nil
}

// span reads [off, off+n) and returns fewer bytes when the file ends first.
func (c conn) span(off, n uint64) ([]byte, error) {
	size, err := c.size()
	if err != nil {
		return nil, err
	}
	if off >= uint64(size) {
		return []byte{}, nil
	}
	n = min(n, uint64(size)-off)
	buf := make([]byte, n)
	m, err := c.h.ReadAt(buf, int64(off))
	if err != nil && !isEOF(err) {
		return nil, err
	}
	return buf[:m], nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
