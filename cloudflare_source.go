package zbxdns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

// NewCloudflareSource constructs a HostSource listing the names of the A and AAAA records
// at or below domain, read from the Cloudflare zone that manages domain.
func NewCloudflareSource(token, domain string, options ...cloudflare.Option) (*CloudflareSource, error) {
	if domain == "" {
		return nil, errors.New("domain cannot be empty")
	}
	api, err := cloudflare.NewWithAPIToken(token, options...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	return &CloudflareSource{
		api:    api,
		domain: canonicalName(domain),
		logger: zap.NewNop(),
	}, nil
}

// CloudflareSource implements zbxdns.HostSource.
//
// Names are yielded sorted and without duplicates,
// so a name with both an A and an AAAA record is yielded once.
type CloudflareSource struct {
	api    *cloudflare.API
	domain string
	logger *zap.Logger
}

func (cf *CloudflareSource) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cf.logger = logger.With(zap.String("component", "cloudflare"))
}

func (cf *CloudflareSource) SetHTTPClient(httpClient *http.Client) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	cloudflare.HTTPClient(httpClient)(cf.api)
}

func (cf *CloudflareSource) Hostnames(ctx context.Context, fn func(hostname string) error) error {
	if cf.api == nil {
		return errors.New("zbxdns.CloudflareSource should be constructed with zbxdns.NewCloudflareSource")
	}

	zid, err := cf.zoneID(ctx)
	if err != nil {
		return fmt.Errorf("unable to get zone ID for %s: %w", cf.domain, err)
	}
	cf.logger.Debug("got zone ID", zap.String("zone", zid))

	var names []string
	for _, recordType := range []string{"A", "AAAA"} {
		records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zid), cloudflare.ListDNSRecordsParams{
			Type: recordType,
		})
		if err != nil {
			return fmt.Errorf("error listing %s records: %w", recordType, err)
		}
		cf.logger.Debug("listed records", zap.String("type", recordType), zap.Int("count", len(records)))
		for _, r := range records {
			name := canonicalName(r.Name)
			if inDomain(name, cf.domain) {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	for _, name := range slices.Compact(names) {
		if err := fn(name); err != nil {
			return err
		}
	}
	return nil
}

// zoneID finds the zone with the longest name that contains the domain.
func (cf *CloudflareSource) zoneID(ctx context.Context) (zid string, err error) {
	zones, err := cf.api.ListZones(ctx)
	if err != nil {
		return "", fmt.Errorf("error listing zones: %w", err)
	}

	max := 0
	for _, z := range zones {
		name := canonicalName(z.Name)
		if inDomain(cf.domain, name) && len(name) > max {
			max, zid = len(name), z.ID
		}
	}
	if max == 0 {
		return "", fmt.Errorf("unable to find a zone matching \"%s\"", cf.domain)
	}
	return zid, nil
}

func inDomain(name, domain string) bool {
	return name == domain || strings.HasSuffix(name, "."+domain)
}
