package zbxdns

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// IOWaitKey is the item key searched for by CheckIOWait.
	IOWaitKey = "system.cpu.util[,iowait]"

	// DefaultIOWaitThreshold is the iowait percentage above which a host is reported.
	DefaultIOWaitThreshold = 30.0
)

// IOWaitSample is the latest iowait value of a host.
type IOWaitSample struct {
	HostID string
	Name   string
	Value  float64
	Clock  time.Time
}

// CheckIOWait returns the hosts of the group whose latest iowait value is above threshold.
//
// Hosts without an iowait item or without collected history are skipped.
// Failures for one host are joined into the returned error and do not stop the others.
func CheckIOWait(ctx context.Context, c *ZabbixClient, groupID string, threshold float64) ([]IOWaitSample, error) {
	hosts, err := c.Hosts(ctx, groupID, false)
	if err != nil {
		return nil, fmt.Errorf("error listing hosts: %w", err)
	}

	var samples []IOWaitSample
	var errs []error
	for _, h := range hosts {
		sample, ok, err := latestIOWait(ctx, c, h)
		if err != nil {
			c.logger.Warn("error reading iowait", zap.String("host", h.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("host %s: %w", h.Name, err))
			continue
		}
		if !ok {
			c.logger.Debug("no iowait data", zap.String("host", h.Name))
			continue
		}
		if sample.Value > threshold {
			c.logger.Info("iowait above threshold", zap.String("host", h.Name), zap.Float64("iowait", sample.Value))
			samples = append(samples, sample)
		}
	}
	return samples, errors.Join(errs...)
}

func latestIOWait(ctx context.Context, c *ZabbixClient, h Host) (IOWaitSample, bool, error) {
	item, ok, err := c.FindItem(ctx, h.HostID, IOWaitKey)
	if err != nil || !ok {
		return IOWaitSample{}, false, err
	}
	// value_type 0 is numeric float, which is what the agent reports for cpu utilization
	valueType, err := strconv.Atoi(item.ValueType)
	if err != nil {
		valueType = 0
	}
	record, ok, err := c.LatestValue(ctx, item.ItemID, valueType)
	if err != nil || !ok {
		return IOWaitSample{}, false, err
	}
	value, err := strconv.ParseFloat(record.Value, 64)
	if err != nil {
		return IOWaitSample{}, false, fmt.Errorf("error parsing value %q: %w", record.Value, err)
	}
	sample := IOWaitSample{HostID: h.HostID, Name: h.Name, Value: value}
	if clock, err := strconv.ParseInt(record.Clock, 10, 64); err == nil {
		sample.Clock = time.Unix(clock, 0)
	}
	return sample, true, nil
}

// WriteIOWaitMetrics writes samples to path in the Prometheus text format,
// for the node_exporter textfile collector.
// The file is replaced atomically.
func WriteIOWaitMetrics(path string, samples []IOWaitSample) error {
	reg := prometheus.NewRegistry()
	iowait := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "zabbix",
		Name:      "host_cpu_iowait_percent",
		Help:      "Latest CPU iowait of Zabbix hosts above the alert threshold.",
	}, []string{"hostid", "host"})
	over := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "zabbix",
		Name:      "hosts_iowait_over_threshold",
		Help:      "Number of Zabbix hosts whose CPU iowait is above the alert threshold.",
	})
	reg.MustRegister(iowait, over)

	for _, s := range samples {
		iowait.WithLabelValues(s.HostID, s.Name).Set(s.Value)
	}
	over.Set(float64(len(samples)))

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("error writing metrics to %s: %w", path, err)
	}
	return nil
}
