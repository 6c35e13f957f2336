package elf

import "github.com/wnxd/composer/internal/fault"

type (
	FormatError       = fault.FormatError
	NoSuchFieldError  = fault.NoSuchFieldError
	NotFoundError     = fault.NotFoundError
	PreconditionError = fault.PreconditionError
)

var ErrNotImplemented = fault.ErrNotImplemented
