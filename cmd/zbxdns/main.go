package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Travis-Britz/zbxdns"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const logoutTimeout = 5 * time.Second

var (
	config  zbxdns.Config
	verbose bool
	logger  = zap.NewNop()
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "zbxdns: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := loadEnv(env("ZBXDNS_ENV_FILE", ".env")); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return command().Run(ctx, os.Args)
}

func command() *cli.Command {
	return &cli.Command{
		Name:  "zbxdns",
		Usage: "create and maintain Zabbix hosts from DNS names",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "url",
				Usage:       "Zabbix API endpoint, e.g. https://zabbix.example.com/api_jsonrpc.php",
				Sources:     cli.EnvVars("ZABBIX_URL"),
				Destination: &config.URL,
			},
			&cli.StringFlag{
				Name:        "user",
				Usage:       "Zabbix user",
				Sources:     cli.EnvVars("ZABBIX_USER"),
				Destination: &config.User,
			},
			&cli.StringFlag{
				Name:        "password",
				Usage:       "Zabbix password; prompted for when empty and stdin is a terminal",
				Sources:     cli.EnvVars("ZABBIX_PASSWORD"),
				Destination: &config.Password,
			},
			&cli.StringFlag{
				Name:        "group",
				Usage:       "host group to work on",
				Sources:     cli.EnvVars("HOST_GROUP"),
				Destination: &config.HostGroup,
			},
			&cli.BoolFlag{
				Name:        "legacy-auth",
				Usage:       "also send the session token in the request body (Zabbix before 6.4)",
				Sources:     cli.EnvVars("ZABBIX_LEGACY_AUTH"),
				Destination: &config.LegacyAuth,
			},
			&cli.StringSliceFlag{
				Name:        "nameserver",
				Usage:       "resolve names with these servers instead of the system resolver",
				Sources:     cli.EnvVars("DNS_SERVERS"),
				Destination: &config.Nameservers,
			},
			&cli.StringFlag{
				Name:        "hosts-file",
				Usage:       "hosts table consulted before DNS",
				Sources:     cli.EnvVars("HOSTS_FILE"),
				Destination: &config.HostsFile,
			},
			&cli.StringFlag{
				Name:        "dns-file",
				Usage:       "file with one hostname per line",
				Sources:     cli.EnvVars("DNS_FILE"),
				Destination: &config.DNSFile,
			},
			&cli.StringFlag{
				Name:        "cloudflare-zone",
				Usage:       "read hostnames from the A/AAAA records under this domain instead of a file",
				Sources:     cli.EnvVars("CLOUDFLARE_ZONE"),
				Destination: &config.CloudflareZone,
			},
			&cli.StringFlag{
				Name:        "cloudflare-token",
				Usage:       "Cloudflare API token with Zone:Read and DNS:Read",
				Sources:     cli.EnvVars("CLOUDFLARE_API_TOKEN"),
				Destination: &config.CloudflareToken,
			},
			&cli.StringFlag{
				Name:        "agent-port",
				Usage:       "port of the agent interface",
				Value:       zbxdns.DefaultAgentPort,
				Sources:     cli.EnvVars("AGENT_PORT"),
				Destination: &config.AgentPort,
			},
			&cli.FloatFlag{
				Name:        "rate",
				Usage:       "maximum host.create calls per second (0 for no limit)",
				Sources:     cli.EnvVars("CREATE_RATE"),
				Destination: &config.Rate,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Usage:       "enable debug logging",
				Destination: &verbose,
			},
		},
		Before:         setupLogger,
		After:          func(context.Context, *cli.Command) error { _ = logger.Sync(); return nil },
		DefaultCommand: "add-hosts",
		Commands: []*cli.Command{
			addHostsCommand(),
			renameCommand(),
			updateIPsCommand(),
			ioWaitCommand(),
		},
	}
}

func addHostsCommand() *cli.Command {
	return &cli.Command{
		Name:   "add-hosts",
		Usage:  "create one host per resolvable name in the DNS list (the default command)",
		Action: addHosts,
	}
}

func addHosts(ctx context.Context, _ *cli.Command) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := readPassword(); err != nil {
		return err
	}
	opts, err := config.Options()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	p, err := zbxdns.New(config.HostGroup, append(opts, zbxdns.WithLogger(logger))...)
	if err != nil {
		return err
	}
	report, err := p.Run(ctx)
	if err != nil {
		return err
	}
	for _, s := range report.Skipped {
		logger.Debug("skipped", zap.String("hostname", s.Hostname), zap.Error(s.Err))
	}
	return nil
}

func renameCommand() *cli.Command {
	var suffix string
	return &cli.Command{
		Name:  "rename",
		Usage: "append a suffix to the visible name of every host in the group",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "suffix",
				Usage:       "text appended to each host name, e.g. .isb",
				Sources:     cli.EnvVars("RENAME_SUFFIX"),
				Required:    true,
				Destination: &suffix,
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			c, groupID, err := connect(ctx)
			if err != nil {
				return err
			}
			defer logout(ctx, c)

			renamed, err := zbxdns.RenameHosts(ctx, c, groupID, suffix)
			logger.Info("hosts update finished", zap.Int("renamed", len(renamed)), zap.NamedError("failures", err))
			if err != nil && len(renamed) == 0 {
				return fmt.Errorf("no host was renamed: %w", err)
			}
			return nil
		},
	}
}

func updateIPsCommand() *cli.Command {
	return &cli.Command{
		Name:  "update-ips",
		Usage: "re-resolve the DNS name of every interface in the group and update changed addresses",
		Action: func(ctx context.Context, _ *cli.Command) error {
			resolver, err := config.Resolver()
			if err != nil {
				return err
			}
			c, groupID, err := connect(ctx)
			if err != nil {
				return err
			}
			defer logout(ctx, c)

			changes, err := zbxdns.RefreshInterfaceIPs(ctx, c, resolver, groupID)
			logger.Info("interface update finished", zap.Int("updated", len(changes)), zap.NamedError("failures", err))
			if err != nil && len(changes) == 0 {
				return fmt.Errorf("no interface was updated: %w", err)
			}
			return nil
		},
	}
}

func ioWaitCommand() *cli.Command {
	var (
		threshold   float64
		metricsFile string
	)
	return &cli.Command{
		Name:  "iowait",
		Usage: "list hosts of the group whose CPU iowait is above a threshold",
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:        "threshold",
				Usage:       "iowait percentage above which a host is reported",
				Value:       zbxdns.DefaultIOWaitThreshold,
				Sources:     cli.EnvVars("IOWAIT_THRESHOLD"),
				Destination: &threshold,
			},
			&cli.StringFlag{
				Name:        "metrics-file",
				Usage:       "also write the result for the node_exporter textfile collector",
				Sources:     cli.EnvVars("IOWAIT_METRICS_FILE"),
				Destination: &metricsFile,
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			c, groupID, err := connect(ctx)
			if err != nil {
				return err
			}
			defer logout(ctx, c)

			samples, err := zbxdns.CheckIOWait(ctx, c, groupID, threshold)
			if err != nil {
				logger.Warn("some hosts could not be checked", zap.Error(err))
			}
			for _, s := range samples {
				fmt.Printf("Host: %s, CPU iowait: %.2f%%\n", s.Name, s.Value)
			}
			if metricsFile != "" {
				return zbxdns.WriteIOWaitMetrics(metricsFile, samples)
			}
			return nil
		},
	}
}

// connect logs in and looks up the configured host group.
func connect(ctx context.Context) (*zbxdns.ZabbixClient, string, error) {
	if err := config.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}
	if err := readPassword(); err != nil {
		return nil, "", err
	}
	c, err := zbxdns.NewZabbixClient(config.URL)
	if err != nil {
		return nil, "", err
	}
	c.SetLogger(logger)
	c.SetLegacyAuth(config.LegacyAuth)

	if err := c.Login(ctx, config.User, config.Password); err != nil {
		return nil, "", fmt.Errorf("error logging in to zabbix: %w", err)
	}
	logger.Info("successfully logged in to zabbix")
	groupID, err := c.HostGroupID(ctx, config.HostGroup)
	if err != nil {
		logout(ctx, c)
		return nil, "", fmt.Errorf("error getting host group id: %w", err)
	}
	return c, groupID, nil
}

// logout runs even after ctx is canceled, bounded by logoutTimeout.
func logout(ctx context.Context, c *zbxdns.ZabbixClient) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	defer cancel()
	if err := c.Logout(ctx); err != nil {
		logger.Warn("error logging out of zabbix", zap.Error(err))
	}
}

func setupLogger(ctx context.Context, _ *cli.Command) (context.Context, error) {
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return ctx, fmt.Errorf("error creating logger: %w", err)
	}
	return ctx, nil
}

// readPassword prompts for the Zabbix password when none was configured and a terminal is attached.
func readPassword() error {
	if config.Password != "" || !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	fmt.Fprintf(os.Stderr, "Zabbix password for %s: ", config.User)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("error reading password from stdin: %w", err)
	}
	config.Password = string(b)
	return nil
}

// loadEnv sets variables from a dotenv file. A missing file is not an error,
// and variables already set in the environment win.
func loadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

func env(envvar string, defaultvalue string) string {
	e, found := os.LookupEnv(envvar)
	if found {
		return e
	}
	return defaultvalue
}
