package zbxdns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// NameserverResolver queries a fixed list of nameservers directly,
// bypassing the system resolver configuration.
//
// An A lookup is made first and an AAAA lookup only when it finds nothing.
// For each lookup the servers are tried in order;
// a server is skipped when it cannot be reached or answers SERVFAIL, REFUSED or another failure code.
// A NOERROR or NXDOMAIN answer is final.
type NameserverResolver struct {
	servers []string
	net     string
	timeout time.Duration
	logger  *zap.Logger
}

// NewNameserverResolver constructs a resolver for the given servers.
// A server without a port is queried on port 53.
func NewNameserverResolver(servers ...string) (*NameserverResolver, error) {
	if len(servers) == 0 {
		return nil, errors.New("no nameservers were provided")
	}
	r := &NameserverResolver{
		net:     "udp",
		timeout: 2 * time.Second,
		logger:  zap.NewNop(),
	}
	for _, s := range servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			return nil, fmt.Errorf("invalid nameserver address %q: %w", s, err)
		}
		r.servers = append(r.servers, s)
	}
	return r, nil
}

func (r *NameserverResolver) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r.logger = logger
}

// SetTimeout bounds each individual query. The default is two seconds.
func (r *NameserverResolver) SetTimeout(d time.Duration) {
	r.timeout = d
}

// UseTCP switches queries from UDP to TCP.
func (r *NameserverResolver) UseTCP() {
	r.net = "tcp"
}

// Resolve implements zbxdns.Resolver.
func (r *NameserverResolver) Resolve(ctx context.Context, hostname string) (netip.Addr, error) {
	fqdn := dns.Fqdn(hostname)
	var errs []error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		addr, err := r.lookup(ctx, fqdn, qtype)
		if err == nil {
			return addr, nil
		}
		errs = append(errs, err)
	}
	return netip.Addr{}, &ResolutionError{Hostname: hostname, Err: errors.Join(errs...)}
}

func (r *NameserverResolver) lookup(ctx context.Context, fqdn string, qtype uint16) (netip.Addr, error) {
	client := &dns.Client{Net: r.net, Timeout: r.timeout}
	request := new(dns.Msg)
	request.SetQuestion(fqdn, qtype)
	qname := dns.TypeToString[qtype]

	var errs []error
	for _, server := range r.servers {
		msg, _, err := client.ExchangeContext(ctx, request, server)
		if err != nil {
			r.logger.Debug("nameserver did not answer", zap.String("server", server), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s lookup on %s: %w", qname, server, err))
			continue
		}
		switch msg.Rcode {
		case dns.RcodeSuccess:
		case dns.RcodeNameError:
			return netip.Addr{}, fmt.Errorf("%s lookup on %s: %s", qname, server, dns.RcodeToString[msg.Rcode])
		default:
			r.logger.Debug("nameserver failed", zap.String("server", server), zap.String("rcode", dns.RcodeToString[msg.Rcode]))
			errs = append(errs, fmt.Errorf("%s lookup on %s: %s", qname, server, dns.RcodeToString[msg.Rcode]))
			continue
		}
		for _, rr := range msg.Answer {
			var ip net.IP
			switch rr := rr.(type) {
			case *dns.A:
				ip = rr.A
			case *dns.AAAA:
				ip = rr.AAAA
			default:
				continue
			}
			if addr, ok := netip.AddrFromSlice(ip); ok {
				return addr.Unmap(), nil
			}
		}
		return netip.Addr{}, fmt.Errorf("%s lookup on %s: no records", qname, server)
	}
	return netip.Addr{}, errors.Join(errs...)
}
