package process

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// Attach stops the process under ptrace and waits for it to halt. The
// calling goroutine stays locked to its OS thread until Detach.
func (m *Memory) Attach() error {
	runtime.LockOSThread()
	if err := unix.PtraceAttach(m.pid); err != nil {
		runtime.UnlockOSThread()
		return os.NewSyscallError("ptrace attach", err)
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(m.pid, &ws, 0, nil); err != nil {
		_ = unix.PtraceDetach(m.pid)
		runtime.UnlockOSThread()
		return os.NewSyscallError("wait4", err)
	}
	return nil
}

func (m *Memory) Detach() error {
	defer runtime.UnlockOSThread()
	if err := unix.PtraceDetach(m.pid); err != nil {
		return os.NewSyscallError("ptrace detach", err)
	}
	return nil
}
