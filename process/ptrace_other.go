//go:build !linux

package process

func (m *Memory) Attach() error {
	return ErrNotImplemented
}

func (m *Memory) Detach() error {
	return ErrNotImplemented
}
