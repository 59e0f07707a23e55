package zbxdns

import "time"

// SetLogoutTimeout replaces the logout timeout until the returned func is called.
func SetLogoutTimeout(d time.Duration) (restore func()) {
	old := logoutTimeout
	logoutTimeout = d
	return func() { logoutTimeout = old }
}
