package zbxdns

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/time/rate"
)

var (
	// ErrMissingURL is returned when no Zabbix API url is configured.
	ErrMissingURL = errors.New("zabbix url must not be empty")

	// ErrMissingUser is returned when no Zabbix user is configured.
	ErrMissingUser = errors.New("zabbix user must not be empty")

	// ErrMissingHostGroup is returned when no host group is configured.
	ErrMissingHostGroup = errors.New("host group must not be empty")

	// ErrMissingSource is returned when neither a dns file nor a cloudflare zone is configured.
	ErrMissingSource = errors.New("either a dns file or a cloudflare zone is required")

	// ErrConflictingSources is returned when both a dns file and a cloudflare zone are configured.
	ErrConflictingSources = errors.New("a dns file and a cloudflare zone cannot both be used")

	// ErrInvalidRate is returned for a negative create rate.
	ErrInvalidRate = errors.New("create rate must not be negative")
)

// Config is the complete configuration of a run, built once at startup.
type Config struct {
	URL        string
	User       string
	Password   string
	HostGroup  string
	LegacyAuth bool

	DNSFile         string
	CloudflareToken string
	CloudflareZone  string

	// Nameservers replaces the system resolver when set.
	Nameservers []string
	// HostsFile is consulted before DNS when set.
	HostsFile string

	AgentPort string
	// Rate is the maximum number of host.create calls per second; zero means unlimited.
	Rate float64
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	if c.User == "" {
		return ErrMissingUser
	}
	if c.HostGroup == "" {
		return ErrMissingHostGroup
	}
	if c.Rate < 0 {
		return ErrInvalidRate
	}
	return nil
}

// ValidateSource checks the host list settings used when creating hosts.
func (c Config) ValidateSource() error {
	switch {
	case c.DNSFile == "" && c.CloudflareZone == "":
		return ErrMissingSource
	case c.DNSFile != "" && c.CloudflareZone != "":
		return ErrConflictingSources
	}
	return nil
}

// Resolver builds the resolver described by the configuration:
// the hosts file first when one is set, then either the nameservers or the system resolver.
func (c Config) Resolver() (Resolver, error) {
	var dnsResolver Resolver = SystemResolver{}
	if len(c.Nameservers) > 0 {
		r, err := NewNameserverResolver(c.Nameservers...)
		if err != nil {
			return nil, err
		}
		dnsResolver = r
	}
	if c.HostsFile == "" {
		return dnsResolver, nil
	}

	f, err := os.Open(c.HostsFile)
	if err != nil {
		return nil, fmt.Errorf("error opening hosts file: %w", err)
	}
	defer f.Close()
	hosts, err := ParseHosts(f)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", c.HostsFile, err)
	}
	return Fallback(hosts, dnsResolver), nil
}

// Options translates the configuration into Provisioner options.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := c.ValidateSource(); err != nil {
		return nil, err
	}
	resolver, err := c.Resolver()
	if err != nil {
		return nil, err
	}

	opts := []Option{
		UsingZabbix(c.URL, c.User, c.Password),
		UsingResolver(resolver),
		WithAgentPort(c.AgentPort),
	}
	if c.LegacyAuth {
		opts = append(opts, UsingLegacyAuth())
	}
	if c.DNSFile != "" {
		opts = append(opts, ReadingFile(c.DNSFile))
	} else {
		opts = append(opts, UsingCloudflare(c.CloudflareToken, c.CloudflareZone))
	}
	if c.Rate > 0 {
		opts = append(opts, WithRateLimit(rate.Limit(c.Rate), 1))
	}
	return opts, nil
}
