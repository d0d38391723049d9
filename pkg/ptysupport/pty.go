// Package ptysupport allocates pseudo-terminals for the shell tool's
// pty:true mode. No example repo in the reference set carries a dedicated
// PTY library, so this wraps the raw ptmx/TIOCGPTN/TIOCSPTLCK ioctls
// directly via golang.org/x/sys/unix.
package ptysupport

import (
	"fmt"
	"os"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

// PTY is an allocated master/slave pseudo-terminal pair. Master is open;
// Name is the slave device path, not yet opened.
type PTY struct {
	Master *os.File
	Name   string
}

// Open allocates a new pty via /dev/ptmx. Unsupported platforms and any
// ioctl failure return an error so callers can degrade to a non-PTY
// subprocess rather than fail the tool call outright.
func Open() (*PTY, error) {
	if runtime.GOOS != "linux" {
		return nil, fmt.Errorf("ptysupport: pty allocation is only supported on linux, got %s", runtime.GOOS)
	}

	master, err := os.OpenFile("/dev/ptmx", os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("ptysupport: open /dev/ptmx: %w", err)
	}

	if err := unix.IoctlSetPointerInt(int(master.Fd()), unix.TIOCSPTLCK, 0); err != nil {
		master.Close()
		return nil, fmt.Errorf("ptysupport: unlock pty: %w", err)
	}

	n, err := unix.IoctlGetInt(int(master.Fd()), unix.TIOCGPTN)
	if err != nil {
		master.Close()
		return nil, fmt.Errorf("ptysupport: get pty number: %w", err)
	}

	return &PTY{Master: master, Name: fmt.Sprintf("/dev/pts/%d", n)}, nil
}

// OpenSlave opens the slave side of an allocated pty.
func (p *PTY) OpenSlave() (*os.File, error) {
	slave, err := os.OpenFile(p.Name, os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("ptysupport: open slave %s: %w", p.Name, err)
	}
	return slave, nil
}

// Close releases the master side.
func (p *PTY) Close() error {
	return p.Master.Close()
}
