package process

import (
	"bytes"
	"io"

	"go.uber.org/multierr"

	"github.com/wnxd/composer/internal/fault"
)

type Match struct {
	Chunk  int
	Addr   uint64
	Offset int64
}

// Search scans every readable chunk for pattern. Chunks that cannot be read
// are skipped and their errors returned together with the matches found.
func (m *Memory) Search(pattern []byte) (matches []Match, err error) {
	if len(pattern) == 0 {
		return nil, fault.Precondition("search", "empty pattern")
	}
	chunks, err := m.Chunks()
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if c.Prot()&PROT_READ == 0 {
			continue
		}
		data, rerr := c.MemRead(-1)
		if rerr != nil {
			err = multierr.Append(err, rerr)
			continue
		}
		for off := 0; ; {
			i := bytes.Index(data[off:], pattern)
			if i == -1 {
				break
			}
			off += i
			matches = append(matches, Match{Chunk: c.Index(), Addr: c.Start + uint64(off), Offset: int64(off)})
			off += len(pattern)
		}
	}
	return
}

// Dump copies every readable chunk to w in address order. Read failures are
// collected; a write failure stops the dump.
func (m *Memory) Dump(w io.Writer) (written int64, err error) {
	chunks, err := m.Chunks()
	if err != nil {
		return 0, err
	}
	for _, c := range chunks {
		if c.Prot()&PROT_READ == 0 {
			continue
		}
		data, rerr := c.MemRead(-1)
		if rerr != nil {
			err = multierr.Append(err, rerr)
			continue
		}
		n, werr := w.Write(data)
		written += int64(n)
		if werr != nil {
			return written, multierr.Append(err, werr)
		}
	}
	return
}
