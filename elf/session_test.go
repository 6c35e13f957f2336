package elf

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/composer/internal/elftest"
)

func TestSession(t *testing.T) {
	f, img := openConfig(t, elftest.Minimal())
	s, err := f.Session()
	require.NoError(t, err)

	sym, err := s.FindSymbol("_start")
	require.NoError(t, err)
	require.NoError(t, sym.Set(StSize, 12))
	require.NoError(t, s.Header().Set(EFlags, 0x5))
	require.NoError(t, s.OverwriteAt(int64(len(img.Bytes)), []byte{1}))
	size, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(img.Bytes)+1), size)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = sym.Get(StSize)
	require.ErrorIs(t, err, fs.ErrClosed)

	// the writes landed in the file
	sym, err = f.FindSymbol("_start")
	require.NoError(t, err)
	got, err := sym.Get(StSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), got)
	flags, err := f.Header().Get(EFlags)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), flags)
}

func TestBatch(t *testing.T) {
	f, img := openConfig(t, elftest.Minimal())
	var held *Session
	err := f.Batch(func(s *Session) error {
		held = s
		_, err := s.LoadNote(payload, 0x8000)
		return err
	})
	require.NoError(t, err)
	_, err = held.Size()
	require.ErrorIs(t, err, fs.ErrClosed)

	entry, err := f.Header().Get(EEntry)
	require.NoError(t, err)
	size := uint64(len(img.Bytes))
	assert.Equal(t, 0x8000+size%0x1000, entry)
}
