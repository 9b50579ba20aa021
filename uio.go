package spdif

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// UIO is a Platform backed by a Linux userspace I/O device (/dev/uioN) bound to the S/PDIF core.
// Map 0 of the UIO device is the register window, and the UIO interrupt is the device interrupt line.
type UIO struct {
	path   string
	file   *os.File
	clocks ClockSet

	mu      sync.Mutex
	handler func()
	stop    [2]int // Pipe used to wake the interrupt loop on Free.
	done    chan struct{}
	loopErr error // Why the interrupt loop exited on its own, valid once done is closed.
}

// OpenUIO opens the UIO device node at path. Clocks are resolved from clocks.
func OpenUIO(path string, clocks ClockSet) (*UIO, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open UIO device %s: %w", path, err)
	}

	return &UIO{
		path:   path,
		file:   file,
		clocks: clocks,
	}, nil
}

// IsReady checks if the UIO handle is valid.
func (u *UIO) IsReady() bool {
	return u != nil && u.file != nil
}

// Close releases the UIO device. Any requested interrupt handler is freed first.
func (u *UIO) Close() error {
	if !u.IsReady() {
		return nil
	}

	_ = u.Free()

	err := u.file.Close()
	u.file = nil

	return err
}

// Map maps UIO map 0, rounded up to whole pages.
func (u *UIO) Map(size int) ([]byte, error) {
	if !u.IsReady() {
		return nil, fmt.Errorf("UIO handle not ready")
	}

	pageSize := os.Getpagesize()
	length := (size + pageSize - 1) / pageSize * pageSize

	// UIO selects map N by mmap offset N * page size.
	mem, err := unix.Mmap(int(u.file.Fd()), 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap register window of %s failed: %w", u.path, err)
	}

	return mem, nil
}

// Unmap unmaps a window returned by Map.
func (u *UIO) Unmap(mem []byte) error {
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap register window failed: %w", err)
	}

	return nil
}

// Clock returns the named clock.
func (u *UIO) Clock(name string) (Clock, error) {
	return u.clocks.Clock(name)
}

// IRQ returns the UIO interrupt. The name must be the device path or its base name.
func (u *UIO) IRQ(name string) (IRQLine, error) {
	if name != u.path && name != filepath.Base(u.path) {
		return nil, fmt.Errorf("interrupt %q is not provided by %s", name, u.path)
	}

	return u, nil
}

// Request starts delivering UIO interrupts to handler.
func (u *UIO) Request(handler func()) error {
	if !u.IsReady() {
		return fmt.Errorf("UIO handle not ready")
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.handler != nil {
		return fmt.Errorf("interrupt of %s already requested: %w", u.path, syscall.EBUSY)
	}

	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return fmt.Errorf("pipe2 failed: %w", err)
	}

	u.handler = handler
	u.stop = p
	u.done = make(chan struct{})
	u.loopErr = nil

	go func(done chan struct{}) {
		u.loopErr = u.irqLoop(handler, p[0])
		close(done)
	}(u.done)

	return nil
}

// Free stops interrupt delivery and waits for the interrupt loop to exit.
// If the loop had already stopped on an I/O error, that error is returned.
func (u *UIO) Free() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.handler == nil {
		return nil
	}

	_, err := unix.Write(u.stop[1], []byte{0})
	<-u.done

	_ = unix.Close(u.stop[0])
	_ = unix.Close(u.stop[1])
	u.handler = nil

	if u.loopErr != nil {
		return fmt.Errorf("interrupt loop of %s stopped: %w", u.path, u.loopErr)
	}

	if err != nil {
		return fmt.Errorf("failed to stop interrupt loop: %w", err)
	}

	return nil
}

// irqLoop unmasks the UIO interrupt, waits for it and runs handler, until stopFd becomes readable.
// It returns nil when stopped through stopFd and the failing operation's error otherwise.
func (u *UIO) irqLoop(handler func(), stopFd int) error {
	fd := int(u.file.Fd())
	buf := make([]byte, 4)

	for {
		// Writing 1 to a UIO device re-enables its interrupt.
		binary.NativeEndian.PutUint32(buf, 1)
		if _, err := unix.Write(fd, buf); err != nil && !errors.Is(err, syscall.ENOSYS) {
			return fmt.Errorf("unmask interrupt failed: %w", err)
		}

		pfd := []unix.PollFd{
			{Fd: int32(fd), Events: unix.POLLIN},
			{Fd: int32(stopFd), Events: unix.POLLIN},
		}

		// Loop to handle EINTR (interrupted system call)
		var err error
		for {
			_, err = unix.Poll(pfd, -1)
			if !errors.Is(err, syscall.EINTR) {
				break
			}
		}

		if err != nil {
			return fmt.Errorf("poll failed: %w", err)
		}

		if pfd[1].Revents != 0 {
			return nil
		}

		if (pfd[0].Revents & (unix.POLLERR | unix.POLLNVAL)) != 0 {
			return fmt.Errorf("poll failed: revents 0x%x", pfd[0].Revents)
		}

		if (pfd[0].Revents & unix.POLLIN) != 0 {
			// The read returns the total interrupt count, which is not needed here.
			if _, err := unix.Read(fd, buf); err != nil {
				return fmt.Errorf("read interrupt count failed: %w", err)
			}

			handler()
		}
	}
}
