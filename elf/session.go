package elf

import (
	"os"
)

// Session is a File view that keeps one handle open until Close. Views
// obtained from a Session stop working once it is closed.
type Session struct {
	image
	held *heldSource
}

func (f *File) Session() (*Session, error) {
	h, err := f.fs.OpenFile(f.path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	held := &heldSource{f: h}
	return &Session{image: image{src: held}, held: held}, nil
}

// Batch runs fn with a Session that is closed when fn returns.
func (f *File) Batch(fn func(s *Session) error) error {
	s, err := f.Session()
	if err != nil {
		return err
	}
	err = fn(s)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Session) Close() error {
	if s.held.closed {
		return nil
	}
	s.held.closed = true
	return s.held.f.Close()
}
