package main

import (
	"bytes"
	stdelf "debug/elf"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wnxd/composer/internal/elftest"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func binary(t *testing.T) (string, *elftest.Image) {
	t.Helper()
	img := elftest.Build(elftest.Minimal())
	return img.WriteFile(t), img
}

func TestHeader(t *testing.T) {
	path, img := binary(t)
	out, _, err := run(t, "header", path)
	require.NoError(t, err)
	assert.Contains(t, out, "7f 45 4c 46")
	assert.Contains(t, out, "e_entry")
	assert.Contains(t, out, hexv(img.Entry))
}

func TestSectionsAndSegments(t *testing.T) {
	path, _ := binary(t)
	out, _, err := run(t, "sections", path)
	require.NoError(t, err)
	for _, name := range []string{".text", ".note.test", ".symtab", ".strtab", ".shstrtab", "SHT_SYMTAB"} {
		assert.Contains(t, out, name)
	}

	out, _, err = run(t, "segments", path)
	require.NoError(t, err)
	assert.Contains(t, out, "PT_LOAD")
	assert.Contains(t, out, "PT_NOTE")
}

func TestSymbols(t *testing.T) {
	path, _ := binary(t)
	out, _, err := run(t, "symbols", path)
	require.NoError(t, err)
	assert.Contains(t, out, "_start")
	assert.Contains(t, out, "counter")
	assert.Contains(t, out, "STT_FUNC")
}

func TestGetSet(t *testing.T) {
	path, img := binary(t)
	symtab := strconv.Itoa(img.Index[".symtab"])

	out, _, err := run(t, "get", path, "symbol:"+symtab+":2", "st_value")
	require.NoError(t, err)
	assert.Equal(t, "0x4\n", out)

	_, _, err = run(t, "set", path, "segment:1", "p_align", "0x1000")
	require.NoError(t, err)
	out, _, err = run(t, "get", path, "segment:1", "p_align")
	require.NoError(t, err)
	assert.Equal(t, "0x1000\n", out)

	_, _, err = run(t, "set", path, "header", "e_flags", "7")
	require.NoError(t, err)
	out, _, err = run(t, "get", path, "header", "e_flags")
	require.NoError(t, err)
	assert.Equal(t, "0x7\n", out)

	_, _, err = run(t, "get", path, "section:1", "p_type")
	assert.EqualError(t, err, "'SectionHeader' has no field 'p_type'")

	_, _, err = run(t, "get", path, "symbol:1:0", "st_value")
	assert.Error(t, err)

	_, _, err = run(t, "get", path, "bogus", "e_type")
	assert.EqualError(t, err, `invalid record "bogus"`)
}

func TestInsertAndOverwrite(t *testing.T) {
	path, img := binary(t)
	_, _, err := run(t, "insert", path, "0", "--hex", "aabb")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, append([]byte{0xaa, 0xbb}, img.Bytes...), data)

	payloadFile := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(payloadFile, []byte{0x7f, 'E'}, 0o644))
	_, _, err = run(t, "overwrite", path, "0", "--from", payloadFile)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7f, 'E'}, data[:2])

	_, _, err = run(t, "insert", path, "0")
	assert.EqualError(t, err, "one of --hex or --from is required")
}

func TestInject(t *testing.T) {
	path, img := binary(t)
	size := uint64(len(img.Bytes))
	out, _, err := run(t, "inject", path, "--hex", "ebfe", "--base", "0x8000")
	require.NoError(t, err)
	want := 0x8000 + size%0x1000
	assert.Equal(t, "entry point is now "+hexv(want)+"\n", out)

	f, err := stdelf.Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, want, f.Entry)
	require.Len(t, f.Progs, 2)
	assert.Equal(t, stdelf.PT_LOAD, f.Progs[1].Type)
	assert.Equal(t, size, f.Progs[1].Off)
}

func TestForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0}, 64), 0o644))

	_, _, err := run(t, "header", path)
	assert.ErrorContains(t, err, "bad magic")

	out, _, err := run(t, "--force", "header", path)
	require.NoError(t, err)
	assert.Contains(t, out, "e_type")
}

func TestVerboseLogs(t *testing.T) {
	path, _ := binary(t)
	_, stderr, err := run(t, "-v", "header", path)
	require.NoError(t, err)
	assert.Contains(t, stderr, "open")
	assert.Contains(t, stderr, path)

	_, stderr, err = run(t, "header", path)
	require.NoError(t, err)
	assert.Empty(t, stderr)
}

func fakeProc(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "77")
	require.NoError(t, os.Mkdir(dir, 0o755))
	maps := "00400000-00401000 r--p 00000000 08:01 12 /bin/target\n" +
		"00401000-00402000 ---p 00000000 00:00 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "maps"), []byte(maps), 0o644))
	mem := make([]byte, 0x402000)
	copy(mem[0x400010:], "secret")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mem"), mem, 0o644))
	return root
}

func TestMaps(t *testing.T) {
	root := fakeProc(t)
	out, _, err := run(t, "maps", "77", "--proc", root)
	require.NoError(t, err)
	assert.Contains(t, out, "0x400000")
	assert.Contains(t, out, "r--p")
	assert.Contains(t, out, "/bin/target")
	assert.Contains(t, out, "4.0 KiB")

	_, _, err = run(t, "maps", "78", "--proc", root)
	assert.ErrorContains(t, err, "process 78 not found")
}

func TestSearchAndDump(t *testing.T) {
	root := fakeProc(t)
	out, _, err := run(t, "search", "77", "secret", "--proc", root)
	require.NoError(t, err)
	assert.Equal(t, "found in chunk 0 at offset 0x10 (0x400010)\n", out)

	out, _, err = run(t, "search", "77", "736563", "--hex", "--proc", root)
	require.NoError(t, err)
	assert.Contains(t, out, "0x400010")

	dump := filepath.Join(t.TempDir(), "dump")
	_, _, err = run(t, "dump", "77", "--proc", root, "-o", dump)
	require.NoError(t, err)
	data, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Len(t, data, 0x1000)
	assert.Equal(t, []byte("secret"), data[0x10:0x16])
}
