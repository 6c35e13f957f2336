// Package process reads and writes the memory of a running process through
// /proc/<pid>/maps and /proc/<pid>/mem.
package process

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strconv"

	"github.com/prometheus/procfs"

	"github.com/wnxd/composer/internal/fault"
)

type options struct {
	root string
}

type Option func(*options)

// WithProcRoot reads process information below dir instead of /proc.
func WithProcRoot(dir string) Option {
	return func(o *options) { o.root = dir }
}

type Memory struct {
	pid  int
	root string
	proc procfs.Proc
}

func Open(pid int, opts ...Option) (*Memory, error) {
	o := options{root: procfs.DefaultMountPoint}
	for _, opt := range opts {
		opt(&o)
	}
	pfs, err := procfs.NewFS(o.root)
	if err != nil {
		return nil, err
	}
	proc, err := pfs.Proc(pid)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{What: "process " + strconv.Itoa(pid), Err: err}
	} else if err != nil {
		return nil, err
	}
	return &Memory{pid: pid, root: o.root, proc: proc}, nil
}

func (m *Memory) PID() int {
	return m.pid
}

// Maps parses the maps file again on every call.
func (m *Memory) Maps() ([]Map, error) {
	pms, err := m.proc.ProcMaps()
	if err != nil {
		return nil, err
	}
	maps := make([]Map, len(pms))
	for i, pm := range pms {
		maps[i] = newMap(pm)
	}
	return maps, nil
}

func (m *Memory) Len() (int, error) {
	maps, err := m.Maps()
	return len(maps), err
}

func (m *Memory) Chunks() ([]Chunk, error) {
	maps, err := m.Maps()
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, len(maps))
	for i, mp := range maps {
		chunks[i] = m.chunk(i, mp)
	}
	return chunks, nil
}

func (m *Memory) Chunk(i int) (Chunk, error) {
	maps, err := m.Maps()
	if err != nil {
		return Chunk{}, err
	}
	if i < 0 || i >= len(maps) {
		return Chunk{}, fault.Precondition("chunk", "index %d out of range [0, %d)", i, len(maps))
	}
	return m.chunk(i, maps[i]), nil
}

func (m *Memory) chunk(i int, mp Map) Chunk {
	return Chunk{Map: mp, index: i, mem: filepath.Join(m.root, strconv.Itoa(m.pid), "mem")}
}
