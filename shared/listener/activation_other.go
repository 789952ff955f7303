//go:build !linux && !darwin

package listener

func activationProvider() Provider {
	return nil
}
