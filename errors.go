package zbxdns

import (
	"errors"
	"fmt"
)

var (
	// ErrGroupNotFound is returned when hostgroup.get has no group with the requested name.
	ErrGroupNotFound = errors.New("host group not found")

	// ErrNoResult is returned for a JSON-RPC response that carries neither an error nor a result.
	ErrNoResult = errors.New("response has no result")

	errNoAddresses = errors.New("no addresses found")
)

// AuthError is returned by ZabbixClient.Login.
// Err is an *APIError when the server rejected the login, or a decoding error when the response was malformed.
type AuthError struct {
	User string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("login as %q failed: %s", e.User, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ResolutionError reports a failed lookup for a single hostname.
type ResolutionError struct {
	Hostname string
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("error resolving %s: %s", e.Hostname, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// resolutionError wraps err unless it already identifies the hostname.
func resolutionError(hostname string, err error) error {
	var re *ResolutionError
	if errors.As(err, &re) {
		return err
	}
	return &ResolutionError{Hostname: hostname, Err: err}
}
