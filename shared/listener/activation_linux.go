//go:build linux

package listener

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"
)

// systemd passes activated sockets starting at file descriptor 3.
const systemdSocketFD = 3

type SystemdSocketProvider struct{}

var _ Provider = (*SystemdSocketProvider)(nil)

func NewSystemdSocketProvider() *SystemdSocketProvider {
	return &SystemdSocketProvider{}
}

func (p *SystemdSocketProvider) Create() (net.Listener, error) {
	numFds, err := strconv.Atoi(os.Getenv("LISTEN_FDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid LISTEN_FDS value: %w", err)
	}
	if numFds < 1 {
		return nil, fmt.Errorf("no sockets passed from systemd")
	}
	if !isSocket(systemdSocketFD) {
		return nil, fmt.Errorf("file descriptor %d is not a socket", systemdSocketFD)
	}

	file := os.NewFile(systemdSocketFD, "systemd-socket")
	ln, err := net.FileListener(file)
	if err != nil {
		return nil, fmt.Errorf("creating listener from systemd socket: %w", err)
	}
	return ln, nil
}

func (p *SystemdSocketProvider) Close() error {
	return nil
}

func (p *SystemdSocketProvider) ActivationType() string {
	return "systemd"
}

func isSocket(fd uintptr) bool {
	var stat syscall.Stat_t
	if err := syscall.Fstat(int(fd), &stat); err != nil {
		return false
	}
	return stat.Mode&syscall.S_IFMT == syscall.S_IFSOCK
}

func activationProvider() Provider {
	if os.Getenv("LISTEN_FDS") == "" {
		return nil
	}
	if os.Getenv("LISTEN_PID") != strconv.Itoa(os.Getpid()) {
		return nil
	}
	return NewSystemdSocketProvider()
}
