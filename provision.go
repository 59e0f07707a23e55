package zbxdns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// logoutTimeout bounds the logout made when a run ends, including a canceled run.
var logoutTimeout = 5 * time.Second

// HostRecord is one host about to be submitted to host.create.
type HostRecord struct {
	Hostname string
	Addr     netip.Addr
	GroupID  string
	Port     string // agent port; DefaultAgentPort when empty
}

// Report is the outcome of a provisioning run, in input order.
type Report struct {
	GroupID string
	Created []CreatedHost
	Skipped []SkippedHost
}

type CreatedHost struct {
	Hostname string
	Addr     netip.Addr
	HostID   string
}

// SkippedHost is an input line that was not created.
// Err is a *ResolutionError when the name did not resolve, otherwise the error from CreateHost.
type SkippedHost struct {
	Hostname string
	Err      error
}

// Err joins the errors of all skipped hosts. It is nil when every line was created.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		errs = append(errs, s.Err)
	}
	return errors.Join(errs...)
}

// Provisioner creates one Zabbix host per name read from its HostSource.
//
// Usage always starts with New.
type Provisioner struct {
	Inventory
	HostSource
	Resolver

	group    string
	user     string
	password string
	port     string
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// Option configures a Provisioner.
type Option func(*Provisioner) error

// New returns a Provisioner that creates hosts in the host group named group.
//
// An inventory (UsingZabbix or UsingInventory) and a source (ReadingFile, UsingSource or UsingCloudflare) are required.
// Names are resolved with a SystemResolver unless UsingResolver or UsingNameservers is given.
func New(group string, options ...Option) (*Provisioner, error) {
	if group == "" {
		return nil, errors.New("zbxdns.New: host group cannot be empty")
	}
	p := &Provisioner{
		Resolver: SystemResolver{},
		group:    group,
		port:     DefaultAgentPort,
	}
	for i, opt := range options {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("zbxdns.New: option %d returned an error: %w", i, err)
		}
	}
	if p.Inventory == nil {
		return nil, errors.New("zbxdns.New: no inventory was registered - use zbxdns.UsingZabbix or similar")
	}
	if p.HostSource == nil {
		return nil, errors.New("zbxdns.New: no host source was registered - use zbxdns.ReadingFile or similar")
	}

	// dependencies registered after WithLogger still need the logger
	withLogger(p.logger)(p)
	return p, nil
}

// UsingZabbix registers a ZabbixClient for the endpoint at apiURL, authenticating as user.
func UsingZabbix(apiURL, user, password string) Option {
	return func(p *Provisioner) error {
		c, err := NewZabbixClient(apiURL)
		if err != nil {
			return err
		}
		p.Inventory = c
		p.user, p.password = user, password
		return nil
	}
}

// UsingInventory registers any Inventory implementation, authenticating as user.
func UsingInventory(inventory Inventory, user, password string) Option {
	return func(p *Provisioner) error {
		if inventory == nil {
			return errors.New("inventory cannot be nil")
		}
		p.Inventory = inventory
		p.user, p.password = user, password
		return nil
	}
}

// ReadingFile reads hostnames from the file at path, one per line.
// The file is opened only after authentication and the group lookup succeed.
func ReadingFile(path string) Option {
	return func(p *Provisioner) error {
		if path == "" {
			return errors.New("dns file path cannot be empty")
		}
		p.HostSource = FileSource(path)
		return nil
	}
}

func UsingSource(source HostSource) Option {
	return func(p *Provisioner) error {
		if source == nil {
			return errors.New("host source cannot be nil")
		}
		p.HostSource = source
		return nil
	}
}

// UsingCloudflare reads hostnames from the A and AAAA records under domain in a Cloudflare zone.
func UsingCloudflare(token, domain string) Option {
	return func(p *Provisioner) (err error) {
		if p.HostSource, err = NewCloudflareSource(token, domain); err != nil {
			return fmt.Errorf("zbxdns.UsingCloudflare: %w", err)
		}
		return nil
	}
}

func UsingResolver(resolver Resolver) Option {
	return func(p *Provisioner) error {
		if resolver == nil {
			resolver = SystemResolver{}
		}
		p.Resolver = resolver
		return nil
	}
}

// UsingNameservers resolves names by querying the given servers directly instead of the system resolver.
func UsingNameservers(servers ...string) Option {
	return func(p *Provisioner) (err error) {
		p.Resolver, err = NewNameserverResolver(servers...)
		return err
	}
}

// WithAgentPort sets the port of the agent interface of every created host.
func WithAgentPort(port string) Option {
	return func(p *Provisioner) error {
		if port == "" {
			port = DefaultAgentPort
		}
		p.port = port
		return nil
	}
}

// WithRateLimit paces host.create calls to at most limit per second.
// Without it calls are made as fast as the server answers.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(p *Provisioner) error {
		if limit <= 0 {
			return fmt.Errorf("rate limit must be positive; got %v", limit)
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(limit, burst)
		return nil
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Provisioner) error {
		p.logger = logger
		return nil
	}
}

func withLogger(logger *zap.Logger) Option {
	return func(p *Provisioner) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		p.logger = logger
		type setLogger interface {
			SetLogger(*zap.Logger)
		}
		if l, ok := p.Inventory.(setLogger); ok {
			l.SetLogger(logger)
		}
		if l, ok := p.HostSource.(setLogger); ok {
			l.SetLogger(logger)
		}
		if l, ok := p.Resolver.(setLogger); ok {
			l.SetLogger(logger)
		}
		return nil
	}
}

// UsingHTTPClient replaces the HTTP client of the inventory and the host source, where they use one.
func UsingHTTPClient(httpClient *http.Client) Option {
	return func(p *Provisioner) error {
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		if hc, ok := p.Inventory.(setHTTPClient); ok {
			hc.SetHTTPClient(httpClient)
		}
		if hc, ok := p.HostSource.(setHTTPClient); ok {
			hc.SetHTTPClient(httpClient)
		}
		return nil
	}
}

// UsingLegacyAuth makes a ZabbixClient inventory send the token in the request body as well.
func UsingLegacyAuth() Option {
	return func(p *Provisioner) error {
		if c, ok := p.Inventory.(*ZabbixClient); ok {
			c.SetLegacyAuth(true)
		}
		return nil
	}
}

// Run logs in, looks up the host group and creates a host for every name in the source.
//
// Login and group lookup failures are returned before the source is read.
// A name that does not resolve or cannot be created is logged, recorded in the report, and skipped.
// A source read error stops the run and is returned together with the report so far.
func (p *Provisioner) Run(ctx context.Context) (*Report, error) {
	if err := p.Login(ctx, p.user, p.password); err != nil {
		return nil, fmt.Errorf("error logging in to zabbix: %w", err)
	}
	p.logger.Info("successfully logged in to zabbix")
	if l, ok := p.Inventory.(interface{ Logout(context.Context) error }); ok {
		defer func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
			defer cancel()
			if err := l.Logout(ctx); err != nil {
				p.logger.Warn("error logging out of zabbix", zap.Error(err))
			}
		}()
	}

	groupID, err := p.HostGroupID(ctx, p.group)
	if err != nil {
		return nil, fmt.Errorf("error getting host group id: %w", err)
	}
	p.logger.Info("found host group", zap.String("group", p.group), zap.String("groupid", groupID))

	report := &Report{GroupID: groupID}
	err = p.Hostnames(ctx, func(hostname string) error {
		return p.provision(ctx, report, hostname)
	})
	p.logger.Info("hosts creation finished",
		zap.Int("created", len(report.Created)),
		zap.Int("skipped", len(report.Skipped)),
	)
	if err != nil {
		return report, fmt.Errorf("error reading host list: %w", err)
	}
	return report, nil
}

// provision handles one input line. Only a canceled context is returned as an error.
func (p *Provisioner) provision(ctx context.Context, report *Report, hostname string) error {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return nil
	}
	log := p.logger.With(zap.String("hostname", hostname))

	addr, err := p.Resolve(ctx, hostname)
	if err != nil {
		err = resolutionError(hostname, err)
		log.Warn("error resolving host", zap.Error(err))
		report.Skipped = append(report.Skipped, SkippedHost{Hostname: hostname, Err: err})
		return nil
	}
	log.Info("resolved host", zap.Stringer("ip", addr))

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	hostID, err := p.CreateHost(ctx, HostRecord{
		Hostname: hostname,
		Addr:     addr,
		GroupID:  report.GroupID,
		Port:     p.port,
	})
	if err != nil {
		log.Warn("error creating host", zap.Error(err))
		report.Skipped = append(report.Skipped, SkippedHost{Hostname: hostname, Err: err})
		return nil
	}
	log.Info("host created", zap.String("hostid", hostID))
	report.Created = append(report.Created, CreatedHost{Hostname: hostname, Addr: addr, HostID: hostID})
	return nil
}
