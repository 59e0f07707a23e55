package zbxdns

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// RenameHosts appends suffix to the visible name of every host in the group.
// Hosts whose name already ends with suffix are left as they are, so the rename can be repeated safely.
//
// The returned hosts carry their new names.
// A failed update does not stop the others; the failures are joined into the returned error.
func RenameHosts(ctx context.Context, c *ZabbixClient, groupID, suffix string) ([]Host, error) {
	if suffix == "" {
		return nil, errors.New("rename suffix cannot be empty")
	}
	hosts, err := c.Hosts(ctx, groupID, false)
	if err != nil {
		return nil, fmt.Errorf("error listing hosts: %w", err)
	}
	c.logger.Info("found hosts in group", zap.String("groupid", groupID), zap.Int("count", len(hosts)))

	var renamed []Host
	var errs []error
	for _, h := range hosts {
		if strings.HasSuffix(h.Name, suffix) {
			c.logger.Debug("host already renamed", zap.String("host", h.Host), zap.String("name", h.Name))
			continue
		}
		newName := h.Name + suffix
		if err := c.UpdateHostName(ctx, h.HostID, newName); err != nil {
			c.logger.Warn("error renaming host", zap.String("host", h.Host), zap.Error(err))
			errs = append(errs, fmt.Errorf("host %s: %w", h.Host, err))
			continue
		}
		c.logger.Info("host renamed", zap.String("host", h.Host), zap.String("name", newName))
		h.Name = newName
		renamed = append(renamed, h)
	}
	return renamed, errors.Join(errs...)
}
