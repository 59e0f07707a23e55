package zbxdns

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// InterfaceChange records an interface whose address was updated.
type InterfaceChange struct {
	HostID      string
	Host        string
	InterfaceID string
	DNS         string
	OldIP       string
	NewIP       string
}

// RefreshInterfaceIPs re-resolves the DNS name of every interface in the group that has one
// and writes the address back when it changed.
//
// Interfaces without a DNS name are ignored.
// Resolution and update failures are per interface; they are joined into the returned error
// while the remaining interfaces are still processed.
func RefreshInterfaceIPs(ctx context.Context, c *ZabbixClient, resolver Resolver, groupID string) ([]InterfaceChange, error) {
	hosts, err := c.Hosts(ctx, groupID, true)
	if err != nil {
		return nil, fmt.Errorf("error listing hosts: %w", err)
	}

	var changes []InterfaceChange
	var errs []error
	for _, h := range hosts {
		for _, iface := range h.Interfaces {
			if iface.DNS == "" {
				continue
			}
			log := c.logger.With(zap.String("host", h.Host), zap.String("dns", iface.DNS))

			addr, err := resolver.Resolve(ctx, iface.DNS)
			if err != nil {
				err = resolutionError(iface.DNS, err)
				log.Warn("error resolving interface", zap.Error(err))
				errs = append(errs, fmt.Errorf("host %s: %w", h.Host, err))
				continue
			}
			ip := addr.String()
			if ip == iface.IP {
				log.Debug("interface address unchanged", zap.String("ip", ip))
				continue
			}
			if err := c.UpdateInterfaceIP(ctx, iface.InterfaceID, ip); err != nil {
				log.Warn("error updating interface", zap.Error(err))
				errs = append(errs, fmt.Errorf("host %s: %w", h.Host, err))
				continue
			}
			log.Info("interface updated", zap.String("old", iface.IP), zap.String("new", ip))
			changes = append(changes, InterfaceChange{
				HostID:      h.HostID,
				Host:        h.Host,
				InterfaceID: iface.InterfaceID,
				DNS:         iface.DNS,
				OldIP:       iface.IP,
				NewIP:       ip,
			})
		}
	}
	return changes, errors.Join(errs...)
}
