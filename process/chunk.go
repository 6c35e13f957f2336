package process

import (
	"errors"
	"io"
	"math"
	"os"

	"github.com/wnxd/composer/internal/fault"
)

// Chunk is one mapped region. The mem file is opened for every access.
type Chunk struct {
	Map
	index int
	mem   string
}

func (c Chunk) Index() int {
	return c.index
}

// MemRead reads length bytes from the start of the region, or the whole
// region when length is negative. Hitting end of file is not an error.
func (c Chunk) MemRead(length int64) ([]byte, error) {
	if length < 0 {
		length = int64(c.Size())
	}
	buf := make([]byte, length)
	n, err := c.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// MemWrite writes data at offset inside the region.
func (c Chunk) MemWrite(offset int64, data []byte) error {
	if offset < 0 || uint64(offset)+uint64(len(data)) > c.Size() {
		return fault.Precondition("write", "range %d+%d outside region of %d bytes", offset, len(data), c.Size())
	}
	_, err := c.WriteAt(data, offset)
	return err
}

// ReadAt reads relative to the region start.
func (c Chunk) ReadAt(b []byte, off int64) (int, error) {
	return c.access(false, b, off)
}

// WriteAt writes relative to the region start.
func (c Chunk) WriteAt(b []byte, off int64) (int, error) {
	return c.access(true, b, off)
}

func (c Chunk) access(write bool, b []byte, off int64) (n int, err error) {
	op, flag := "read", os.O_RDONLY
	if write {
		op, flag = "write", os.O_RDWR
	}
	addr := c.Start + uint64(off)
	if off < 0 || addr < c.Start || addr > math.MaxInt64 {
		return 0, &MemoryError{Op: op, Addr: addr, Size: uint64(len(b)), Err: fault.Precondition(op, "address not addressable through mem")}
	}
	f, err := os.OpenFile(c.mem, flag, 0)
	if err != nil {
		return 0, &MemoryError{Op: op, Addr: addr, Size: uint64(len(b)), Err: err}
	}
	defer f.Close()
	if write {
		n, err = f.WriteAt(b, int64(addr))
	} else {
		n, err = f.ReadAt(b, int64(addr))
	}
	if err != nil && !errors.Is(err, io.EOF) {
		err = &MemoryError{Op: op, Addr: addr, Size: uint64(len(b)), Err: err}
	}
	return
}
