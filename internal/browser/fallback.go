package browser

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTunnel marks a failure of the proxy tunnel rather than of the target site.
	ErrTunnel = errors.New("proxy tunnel failure")
	// ErrInfrastructure is returned when the direct-connection retry failed as well.
	ErrInfrastructure = errors.New("infrastructure failure")
)

var tunnelMarkers = []string{
	"ERR_TUNNEL_CONNECTION_FAILED",
	"ERR_PROXY_CONNECTION_FAILED",
	"ERR_NO_SUPPORTED_PROXIES",
	"ERR_PROXY_AUTH_UNSUPPORTED",
}

// IsTunnelError reports whether err came from the network intermediary.
func IsTunnelError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTunnel) {
		return true
	}
	msg := err.Error()
	for _, m := range tunnelMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// withDirectFallback runs op. When op fails with a tunnel error, fallback switches to a
// direct connection and op is retried exactly once.
func withDirectFallback(op func() error, fallback func() error) error {
	err := op()
	if err == nil || !IsTunnelError(err) {
		return err
	}

	if ferr := fallback(); ferr != nil {
		return fmt.Errorf("%w: switching to direct connection after %v: %v", ErrInfrastructure, err, ferr)
	}

	if err := op(); err != nil {
		return fmt.Errorf("%w: retry over direct connection: %v", ErrInfrastructure, err)
	}
	return nil
}
