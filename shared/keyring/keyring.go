// Package keyring stores provider API keys in the operating system's
// credential store, so they never need to live in config files.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const ServiceName = "transformd"

type ErrSecretNotFound struct {
	Key string
	Err error
}

func (e *ErrSecretNotFound) Error() string {
	return fmt.Sprintf("secret %q not found: %s", e.Key, e.Err)
}

func (e *ErrSecretNotFound) Is(target error) bool {
	_, ok := target.(*ErrSecretNotFound)
	return ok
}

func (e *ErrSecretNotFound) Unwrap() error {
	return e.Err
}

type Provider interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// KeyringProvider is backed by the OS credential store.
type KeyringProvider struct{}

var _ Provider = (*KeyringProvider)(nil)

func NewKeyringProvider() *KeyringProvider {
	return &KeyringProvider{}
}

func (p *KeyringProvider) Get(key string) (string, error) {
	value, err := keyring.Get(ServiceName, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", &ErrSecretNotFound{Key: key, Err: err}
		}
		return "", fmt.Errorf("reading %q from keyring: %w", key, err)
	}
	return value, nil
}

func (p *KeyringProvider) Set(key, value string) error {
	if err := keyring.Set(ServiceName, key, value); err != nil {
		return fmt.Errorf("writing %q to keyring: %w", key, err)
	}
	return nil
}

func (p *KeyringProvider) Delete(key string) error {
	if err := keyring.Delete(ServiceName, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting %q from keyring: %w", key, err)
	}
	return nil
}

// MemoryProvider keeps secrets in a map; it backs tests.
type MemoryProvider struct {
	secrets map[string]string
}

var _ Provider = (*MemoryProvider)(nil)

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{secrets: make(map[string]string)}
}

func (p *MemoryProvider) Get(key string) (string, error) {
	value, ok := p.secrets[key]
	if !ok {
		return "", &ErrSecretNotFound{Key: key, Err: keyring.ErrNotFound}
	}
	return value, nil
}

func (p *MemoryProvider) Set(key, value string) error {
	p.secrets[key] = value
	return nil
}

func (p *MemoryProvider) Delete(key string) error {
	delete(p.secrets, key)
	return nil
}
