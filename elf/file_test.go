package elf

import (
	stdelf "debug/elf"
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/composer/internal/elftest"
)

var variants = []struct {
	name  string
	class stdelf.Class
	order binary.ByteOrder
}{
	{"elf32le", stdelf.ELFCLASS32, binary.LittleEndian},
	{"elf32be", stdelf.ELFCLASS32, binary.BigEndian},
	{"elf64le", stdelf.ELFCLASS64, binary.LittleEndian},
	{"elf64be", stdelf.ELFCLASS64, binary.BigEndian},
}

func minimal(class stdelf.Class, order binary.ByteOrder) elftest.Config {
	cfg := elftest.Minimal()
	cfg.Class = class
	cfg.Order = order
	return cfg
}

func openConfig(t *testing.T, cfg elftest.Config) (*File, *elftest.Image) {
	t.Helper()
	img := elftest.Build(cfg)
	f, err := Open(img.WriteFile(t))
	require.NoError(t, err)
	return f, img
}

func TestOpenChecksMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "junk")
	require.NoError(t, os.WriteFile(path, []byte("this is not an elf file at all"), 0o644))

	_, err := Open(path)
	var ferr *FormatError
	require.ErrorAs(t, err, &ferr)

	f, err := Open(path, WithForce())
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())
}

func TestOpenForceShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short")
	require.NoError(t, os.WriteFile(path, []byte{0x7f, 'E'}, 0o644))

	_, err := Open(path)
	var ferr *FormatError
	require.ErrorAs(t, err, &ferr)

	f, err := Open(path, WithForce())
	require.NoError(t, err)
	_, err = f.Header().Get(EType)
	require.ErrorAs(t, err, &ferr)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOpenWithFs(t *testing.T) {
	mem := afero.NewMemMapFs()
	img := elftest.Build(elftest.Minimal())
	require.NoError(t, afero.WriteFile(mem, "/bin/a.out", img.Bytes, 0o755))

	f, err := Open("/bin/a.out", WithFs(mem))
	require.NoError(t, err)
	entry, err := f.Header().Get(EEntry)
	require.NoError(t, err)
	assert.Equal(t, img.Entry, entry)

	require.NoError(t, f.Header().Set(EEntry, 0x401234))
	data, err := afero.ReadFile(mem, "/bin/a.out")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x401234), binary.LittleEndian.Uint64(data[24:]))
}

func TestMagic(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			f, _ := openConfig(t, minimal(v.class, v.order))
			ident, err := f.Header().Ident().Bytes()
			require.NoError(t, err)
			assert.Equal(t, []byte(ELFMAG), ident[:4])
			assert.Equal(t, byte(v.class), ident[stdelf.EI_CLASS])
			assert.Equal(t, EI_NIDENT, f.Header().Ident().Len())

			b, err := f.Header().Ident().At(1)
			require.NoError(t, err)
			assert.Equal(t, byte('E'), b)
		})
	}
}

func TestIdentSet(t *testing.T) {
	f, _ := openConfig(t, elftest.Minimal())
	id := f.Header().Ident()
	require.NoError(t, id.Set(stdelf.EI_OSABI, byte(stdelf.ELFOSABI_LINUX)))
	b, err := id.At(stdelf.EI_OSABI)
	require.NoError(t, err)
	assert.Equal(t, byte(stdelf.ELFOSABI_LINUX), b)

	var perr *PreconditionError
	require.ErrorAs(t, id.Set(EI_NIDENT, 0), &perr)
	_, err = id.At(-1)
	require.ErrorAs(t, err, &perr)
}

func TestHeaderCounts(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			f, img := openConfig(t, minimal(v.class, v.order))
			shnum, err := f.Header().Get(EShnum)
			require.NoError(t, err)
			phnum, err := f.Header().Get(EPhnum)
			require.NoError(t, err)

			shdrs, err := f.SectionHeaders()
			require.NoError(t, err)
			assert.Len(t, shdrs, int(shnum))
			assert.Len(t, shdrs, len(img.Sections))

			phdrs, err := f.ProgramHeaders()
			require.NoError(t, err)
			assert.Len(t, phdrs, int(phnum))
			assert.Len(t, phdrs, len(img.Progs))

			segs, err := f.Segments()
			require.NoError(t, err)
			assert.Len(t, segs, int(phnum))
			secs, err := f.Sections()
			require.NoError(t, err)
			assert.Len(t, secs, int(shnum))
		})
	}
}

func TestInsertAt(t *testing.T) {
	f, img := openConfig(t, elftest.Minimal())
	before, err := f.Size()
	require.NoError(t, err)
	require.Equal(t, int64(len(img.Bytes)), before)

	data := []byte("inserted")
	off := int64(img.Sections[img.Index[".text"]].Offset)
	require.NoError(t, f.InsertAt(off, data))

	after, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, before+int64(len(data)), after)

	got, err := f.ReadBytes(off, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// the old bytes follow the inserted ones
	rest, err := f.ReadBytes(off+int64(len(data)), len(img.Bytes)-int(off))
	require.NoError(t, err)
	assert.Equal(t, img.Bytes[off:], rest)

	// offsets are not reconciled
	shoff, err := f.Header().Get(EShoff)
	require.NoError(t, err)
	assert.Equal(t, binary.LittleEndian.Uint64(img.Bytes[40:]), shoff)
}

func TestInsertAtBounds(t *testing.T) {
	f, img := openConfig(t, elftest.Minimal())
	var perr *PreconditionError
	require.ErrorAs(t, f.InsertAt(-1, []byte{1}), &perr)
	require.ErrorAs(t, f.InsertAt(int64(len(img.Bytes))+1, []byte{1}), &perr)

	require.NoError(t, f.InsertAt(int64(len(img.Bytes)), []byte{1, 2}))
	size, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(img.Bytes)+2), size)
}

func TestOverwriteAt(t *testing.T) {
	f, img := openConfig(t, elftest.Minimal())
	size := int64(len(img.Bytes))

	require.NoError(t, f.OverwriteAt(size-4, []byte{0xaa, 0xbb, 0xcc, 0xdd}))
	got, err := f.Size()
	require.NoError(t, err)
	assert.Equal(t, size, got)

	tail, err := f.ReadBytes(size-4, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd}, tail)

	require.NoError(t, f.OverwriteAt(size, []byte{1, 2, 3}))
	got, err = f.Size()
	require.NoError(t, err)
	assert.Equal(t, size+3, got)

	var perr *PreconditionError
	require.ErrorAs(t, f.OverwriteAt(-1, nil), &perr)
}

func TestReadBytes(t *testing.T) {
	f, img := openConfig(t, elftest.Minimal())
	size := len(img.Bytes)

	got, err := f.ReadBytes(int64(size-3), 100)
	require.NoError(t, err)
	assert.Equal(t, img.Bytes[size-3:], got)

	got, err = f.ReadBytes(int64(size+10), 4)
	require.NoError(t, err)
	assert.Empty(t, got)

	var perr *PreconditionError
	_, err = f.ReadBytes(0, -1)
	require.ErrorAs(t, err, &perr)
}

func TestSectionIndexRange(t *testing.T) {
	f, img := openConfig(t, elftest.Minimal())
	var perr *PreconditionError
	_, err := f.Section(len(img.Sections))
	require.ErrorAs(t, err, &perr)
	_, err = f.Segment(-1)
	require.ErrorAs(t, err, &perr)

	s, err := f.Section(1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Index())
	seg, err := f.Segment(1)
	require.NoError(t, err)
	assert.Equal(t, 1, seg.Header().Index())
}
