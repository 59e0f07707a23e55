package zbxdns

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// DefaultLookupTimeout bounds a single SystemResolver lookup when no Timeout is set.
const DefaultLookupTimeout = 5 * time.Second

// SystemResolver resolves names with the operating system's resolver configuration.
//
// IPv4 addresses are preferred;
// an IPv6 address is returned only when the name has no IPv4 address.
type SystemResolver struct {
	Resolver *net.Resolver // defaults to net.DefaultResolver
	Network  string        // "ip" (default), "ip4" or "ip6"
	Timeout  time.Duration
}

// Resolve implements zbxdns.Resolver.
func (r SystemResolver) Resolve(ctx context.Context, hostname string) (netip.Addr, error) {
	resolver := r.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	network := r.Network
	if network == "" {
		network = "ip"
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := resolver.LookupNetIP(ctx, network, hostname)
	if err != nil {
		return netip.Addr{}, &ResolutionError{Hostname: hostname, Err: err}
	}
	addr, ok := preferIPv4(addrs)
	if !ok {
		return netip.Addr{}, &ResolutionError{Hostname: hostname, Err: errNoAddresses}
	}
	return addr, nil
}

func preferIPv4(addrs []netip.Addr) (netip.Addr, bool) {
	for _, a := range addrs {
		if a = a.Unmap(); a.Is4() {
			return a, true
		}
	}
	for _, a := range addrs {
		if a.IsValid() {
			return a, true
		}
	}
	return netip.Addr{}, false
}
