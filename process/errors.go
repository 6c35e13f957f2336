package process

import (
	"fmt"

	"github.com/wnxd/composer/internal/fault"
)

type (
	NotFoundError     = fault.NotFoundError
	PreconditionError = fault.PreconditionError
)

var ErrNotImplemented = fault.ErrNotImplemented

// MemoryError reports a failed access to the mem file of a process.
type MemoryError struct {
	Op   string
	Addr uint64
	Size uint64
	Err  error
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("[InvalidMemory] %s addr: %016X, size: %d: %v", e.Op, e.Addr, e.Size, e.Err)
}

func (e *MemoryError) Unwrap() error {
	return e.Err
}
