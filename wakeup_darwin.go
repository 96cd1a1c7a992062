//go:build darwin

package henrio

import (
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	EFD_CLOEXEC  = unix.O_CLOEXEC
	EFD_NONBLOCK = unix.O_NONBLOCK
)

// createWakeFd creates a self-pipe for wake-up notifications (Darwin).
// Returns the read end and the write end of the pipe.
// Note: initval and flags parameters are ignored on Darwin (API compatibility with Linux eventfd).
func createWakeFd(initval uint, flags int) (int, int, error) {
	_ = initval
	_ = flags

	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}

	// On failure, close both pipe ends to avoid resource leak
	cleanup := func() {
		syscall.Close(fds[0])
		syscall.Close(fds[1])
	}

	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])

	if err := syscall.SetNonblock(fds[0], true); err != nil {
		cleanup()
		return 0, 0, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		cleanup()
		return 0, 0, err
	}

	return fds[0], fds[1], nil
}

// getWakeReadFd always returns -1: this file has no access to the loop
// instance, which keeps its own wake descriptor.
func getWakeReadFd() int {
	return -1
}

// drainWakeUpPipe is a no-op stub.
func drainWakeUpPipe() error {
	// The loop drains its wake descriptor through drainWakeFD instead
	return nil
}

// isWakeFdSupported returns true.
func isWakeFdSupported() bool {
	return true
}

// closeWakeFd closes wake pipe fds.
func closeWakeFd(wakeFd, wakeWriteFd int) error {
	if wakeFd >= 0 {
		_ = syscall.Close(wakeFd)
	}
	if wakeWriteFd >= 0 && wakeWriteFd != wakeFd {
		_ = syscall.Close(wakeWriteFd)
	}
	return nil
}

// writeWake signals fd (the write end of the self-pipe) once.
func writeWake(fd int) error {
	_, err := syscall.Write(fd, []byte{1})
	if err == syscall.EAGAIN {
		return nil
	}
	return err
}

// drainWakeFD drains every pending wake-up byte on fd (the read end).
func drainWakeFD(fd int) error {
	var buf [64]byte
	for {
		if _, err := syscall.Read(fd, buf[:]); err != nil {
			break
		}
	}
	return nil
}

// submitGenericWakeup is a stub for Darwin/Linux.
// This function name exists on Windows for PostQueuedCompletionStatus.
// On Darwin/Linux, we write to the wake pipe instead.
//
// Note: loop.go never calls this; Submit signals through writeWake,
// so this is a safety stub only.
func submitGenericWakeup(_ uintptr) error {
	// Darwin/Linux: Submit writes to the wake descriptor via writeWake
	// This stub exists for function name compatibility with Windows
	return nil
}
