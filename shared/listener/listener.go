// Package listener abstracts how the daemon obtains its network
// listener: a plain TCP address, a unix socket, or a socket handed over
// by the init system (systemd on Linux, launchd on macOS).
package listener

import (
	"fmt"
	"net"
	"os"
)

type Provider interface {
	Create() (net.Listener, error)
	Close() error
	ActivationType() string
}

// Detect picks the listener provider: an explicit unix socket path wins,
// then init-system socket activation, then the TCP address.
func Detect(addr, socketPath string) (Provider, error) {
	if socketPath != "" {
		return NewUnixSocketProvider(socketPath), nil
	}
	if p := activationProvider(); p != nil {
		return p, nil
	}
	if addr != "" {
		return NewTCPProvider(addr), nil
	}
	return nil, fmt.Errorf("no listener configured: set an address, a unix socket path, or use socket activation")
}

type TCPProvider struct {
	addr string
}

var _ Provider = (*TCPProvider)(nil)

func NewTCPProvider(addr string) *TCPProvider {
	return &TCPProvider{addr: addr}
}

func (p *TCPProvider) Create() (net.Listener, error) {
	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", p.addr, err)
	}
	return ln, nil
}

func (p *TCPProvider) Close() error {
	return nil
}

func (p *TCPProvider) ActivationType() string {
	return "tcp"
}

type UnixSocketProvider struct {
	listener   net.Listener
	socketPath string
}

var _ Provider = (*UnixSocketProvider)(nil)

func NewUnixSocketProvider(socketPath string) *UnixSocketProvider {
	return &UnixSocketProvider{socketPath: socketPath}
}

func (p *UnixSocketProvider) Create() (net.Listener, error) {
	_ = os.Remove(p.socketPath)
	ln, err := net.Listen("unix", p.socketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on unix socket %s: %w", p.socketPath, err)
	}
	p.listener = ln
	if err := os.Chmod(p.socketPath, 0o666); err != nil {
		ln.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}
	return ln, nil
}

func (p *UnixSocketProvider) Close() error {
	if p.listener != nil {
		p.listener.Close()
	}
	return os.Remove(p.socketPath)
}

func (p *UnixSocketProvider) ActivationType() string {
	return "unix"
}
