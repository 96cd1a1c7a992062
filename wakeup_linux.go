//go:build linux

//lint:file-ignore U1000 Platform-specific stub functions (required for Windows/Darwin compatibility)

package henrio

import (
	"golang.org/x/sys/unix"
)

const (
	EFD_CLOEXEC  = unix.EFD_CLOEXEC
	EFD_NONBLOCK = unix.EFD_NONBLOCK
)

// createWakeFd creates an eventfd for wake-up notifications (Linux).
// Returns the single eventfd as both read and write ends.
func createWakeFd(initval uint, flags int) (int, int, error) {
	fd, err := unix.Eventfd(initval, flags)
	return fd, fd, err
}

// closeWakeFd closes the wake eventfd on Linux.
func closeWakeFd(wakeFd, wakeWriteFd int) error {
	if wakeFd >= 0 {
		_ = unix.Close(wakeFd)
	}
	return nil
}

// isWakeFdSupported returns true on Linux (eventfd mechanism).
func isWakeFdSupported() bool {
	return true
}

// drainWakeUpPipe drains the fd from getWakeReadFd when it is valid; since
// that is always -1, it drains nothing. The loop drains its wake eventfd
// through drainWakeFD.
func drainWakeUpPipe() error {
	if wakeFd := getWakeReadFd(); wakeFd >= 0 {
		// Read all available wake-ups
		var buf [8]byte
		for {
			_, err := unix.Read(wakeFd, buf[:])
			if err != nil {
				break
			}
		}
	}
	return nil
}

// getWakeReadFd always returns -1: this file has no access to the loop
// instance, which keeps its own wake descriptor.
func getWakeReadFd() int {
	return -1
}

// writeWake signals fd (the write end of a wake eventfd) once, waking a
// blocked EpollWait. EAGAIN (the eventfd counter is already non-zero) is
// not an error: a pending wake is already in flight.
func writeWake(fd int) error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(fd, buf[:])
	if err == unix.EAGAIN {
		return nil
	}
	return err
}

// drainWakeFD drains every pending wake-up on fd (the read end), called
// after the readiness source reports it ready.
func drainWakeFD(fd int) error {
	var buf [8]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
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
