package zbxdns

import (
	"context"
	"net/netip"
)

// Resolver maps a hostname to the address that will be written to the host's agent interface.
type Resolver interface {
	Resolve(ctx context.Context, hostname string) (netip.Addr, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(ctx context.Context, hostname string) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context, hostname string) (netip.Addr, error) {
	return f(ctx, hostname)
}

// HostSource yields hostnames in order.
//
// Implementations must not pass blank names to fn.
// Iteration stops at the first error returned by fn, and that error is returned.
type HostSource interface {
	Hostnames(ctx context.Context, fn func(hostname string) error) error
}

// Inventory is the monitoring-side half of a provisioning run.
// ZabbixClient is the implementation used outside of tests.
type Inventory interface {
	Login(ctx context.Context, user, password string) error
	HostGroupID(ctx context.Context, name string) (string, error)
	CreateHost(ctx context.Context, host HostRecord) (hostID string, err error)
}
