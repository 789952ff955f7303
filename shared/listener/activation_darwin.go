//go:build darwin

package listener

import (
	"fmt"
	"net"
	"os"
	"strings"

	launchd "github.com/bored-engineer/go-launchd"
)

type LaunchdSocketProvider struct{}

var _ Provider = (*LaunchdSocketProvider)(nil)

func NewLaunchdSocketProvider() *LaunchdSocketProvider {
	return &LaunchdSocketProvider{}
}

func (p *LaunchdSocketProvider) Create() (net.Listener, error) {
	ln, err := launchd.Activate("Listeners")
	if err != nil {
		return nil, fmt.Errorf("activating launchd socket: %w", err)
	}
	return ln, nil
}

func (p *LaunchdSocketProvider) Close() error {
	return nil
}

func (p *LaunchdSocketProvider) ActivationType() string {
	return "launchd"
}

func activationProvider() Provider {
	if strings.HasPrefix(os.Getenv("XPC_SERVICE_NAME"), "io.intentlabs.transformd.") {
		return NewLaunchdSocketProvider()
	}
	return nil
}
