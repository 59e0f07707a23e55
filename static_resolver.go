package zbxdns

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strings"
)

// StaticResolver answers from a fixed table of names.
// Keys are lower case without a trailing dot.
type StaticResolver map[string]netip.Addr

func (s StaticResolver) Resolve(_ context.Context, hostname string) (netip.Addr, error) {
	addr, ok := s[canonicalName(hostname)]
	if !ok {
		return netip.Addr{}, &ResolutionError{Hostname: hostname, Err: errNoAddresses}
	}
	return addr, nil
}

// ParseHosts reads a table in /etc/hosts format: an address followed by one or more names.
// Text after '#' is ignored. When a name appears twice, the first address wins.
func ParseHosts(r io.Reader) (StaticResolver, error) {
	hosts := StaticResolver{}
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line, _, _ := strings.Cut(scanner.Text(), "#")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected an address followed by at least one name", n)
		}
		addr, err := netip.ParseAddr(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: unable to parse IP: %w", n, err)
		}
		for _, name := range fields[1:] {
			name = canonicalName(name)
			if _, exists := hosts[name]; !exists {
				hosts[name] = addr.Unmap()
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading hosts table: %w", err)
	}
	return hosts, nil
}

func canonicalName(name string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
}

// Fallback returns a resolver that tries each resolver in order and returns the first address found.
func Fallback(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(ctx context.Context, hostname string) (netip.Addr, error) {
		if len(resolvers) == 0 {
			return netip.Addr{}, &ResolutionError{Hostname: hostname, Err: errors.New("no resolvers configured")}
		}
		var errs []error
		for _, r := range resolvers {
			addr, err := r.Resolve(ctx, hostname)
			if err == nil {
				return addr, nil
			}
			var re *ResolutionError
			if errors.As(err, &re) {
				err = re.Err
			}
			errs = append(errs, err)
		}
		return netip.Addr{}, &ResolutionError{Hostname: hostname, Err: errors.Join(errs...)}
	})
}
