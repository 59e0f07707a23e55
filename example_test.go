package zbxdns_test

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"os"
	"time"

	"github.com/Travis-Britz/zbxdns"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func ExampleNew() {
	p, err := zbxdns.New(
		"Linux servers",
		zbxdns.UsingZabbix("https://zabbix.example.com/api_jsonrpc.php", "Admin", os.Getenv("ZABBIX_PASSWORD")),
		zbxdns.ReadingFile("dns.txt"),
		zbxdns.WithLogger(zap.NewExample()),
		zbxdns.UsingHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	)
	if err != nil {
		log.Fatalf("error creating provisioner: %s", err)
	}
	report, err := p.Run(context.Background())
	if err != nil {
		log.Fatalf("provisioning failed: %s", err)
	}
	fmt.Printf("created %d hosts, skipped %d\n", len(report.Created), len(report.Skipped))
}

func ExampleUsingCloudflare() {
	// hosts are created for every A and AAAA record under lab.example.com,
	// at no more than two per second:
	p, err := zbxdns.New(
		"Lab",
		zbxdns.UsingZabbix("https://zabbix.example.com/api_jsonrpc.php", "Admin", os.Getenv("ZABBIX_PASSWORD")),
		zbxdns.UsingCloudflare(os.Getenv("CLOUDFLARE_API_TOKEN"), "lab.example.com"),
		zbxdns.WithRateLimit(rate.Limit(2), 1),
	)
	if err != nil {
		log.Fatalf("error creating provisioner: %s", err)
	}
	if _, err := p.Run(context.Background()); err != nil {
		log.Fatalf("provisioning failed: %s", err)
	}
}

func ExampleFallback() {
	overrides := zbxdns.StaticResolver{
		"db01.example.com": netip.MustParseAddr("10.0.0.5"),
	}
	ns, err := zbxdns.NewNameserverResolver("10.0.0.53", "10.0.1.53")
	if err != nil {
		log.Fatalf("error creating resolver: %s", err)
	}
	p, err := zbxdns.New(
		"Linux servers",
		zbxdns.UsingZabbix("https://zabbix.example.com/api_jsonrpc.php", "Admin", os.Getenv("ZABBIX_PASSWORD")),
		zbxdns.ReadingFile("dns.txt"),
		zbxdns.UsingResolver(zbxdns.Fallback(overrides, ns)),
	)
	if err != nil {
		log.Fatalf("error creating provisioner: %s", err)
	}
	if _, err := p.Run(context.Background()); err != nil {
		log.Fatalf("provisioning failed: %s", err)
	}
}

func ExampleResolverFunc() {
	// every name maps to its address on the management network:
	fn := func(ctx context.Context, hostname string) (netip.Addr, error) {
		return zbxdns.SystemResolver{}.Resolve(ctx, "mgmt-"+hostname)
	}
	p, err := zbxdns.New(
		"Linux servers",
		zbxdns.UsingZabbix("https://zabbix.example.com/api_jsonrpc.php", "Admin", os.Getenv("ZABBIX_PASSWORD")),
		zbxdns.ReadingFile("dns.txt"),
		zbxdns.UsingResolver(zbxdns.ResolverFunc(fn)),
	)
	if err != nil {
		log.Fatalf("error creating provisioner: %s", err)
	}
	if _, err := p.Run(context.Background()); err != nil {
		log.Fatalf("provisioning failed: %s", err)
	}
}

func ExampleCheckIOWait() {
	ctx := context.Background()
	c, err := zbxdns.NewZabbixClient("https://zabbix.example.com/api_jsonrpc.php")
	if err != nil {
		log.Fatal(err)
	}
	if err := c.Login(ctx, "Admin", os.Getenv("ZABBIX_PASSWORD")); err != nil {
		log.Fatal(err)
	}
	defer c.Logout(ctx)

	groupID, err := c.HostGroupID(ctx, "Linux servers")
	if err != nil {
		log.Fatal(err)
	}
	samples, err := zbxdns.CheckIOWait(ctx, c, groupID, zbxdns.DefaultIOWaitThreshold)
	if err != nil {
		log.Printf("some hosts could not be checked: %s", err)
	}
	for _, s := range samples {
		fmt.Printf("Host: %s, CPU iowait: %.2f%%\n", s.Name, s.Value)
	}
}
