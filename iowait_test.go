package zbxdns_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Travis-Britz/zbxdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckIOWait(t *testing.T) {
	f := newFakeZabbix(t)
	f.session("tok", "42", "infra")
	f.result("host.get", []map[string]string{
		{"hostid": "1", "host": "db01", "name": "db01"},
		{"hostid": "2", "host": "web01", "name": "web01"},
		{"hostid": "3", "host": "new01", "name": "new01"},
		{"hostid": "4", "host": "edge01", "name": "edge01"},
		{"hostid": "5", "host": "exact01", "name": "exact01"},
	})
	// host 4 has no iowait item
	items := map[string]map[string]string{
		"1": {"itemid": "101", "hostid": "1", "key_": zbxdns.IOWaitKey, "value_type": "0"},
		"2": {"itemid": "201", "hostid": "2", "key_": zbxdns.IOWaitKey, "value_type": "0"},
		"3": {"itemid": "301", "hostid": "3", "key_": zbxdns.IOWaitKey, "value_type": "0"},
		"5": {"itemid": "501", "hostid": "5", "key_": zbxdns.IOWaitKey, "value_type": "0"},
	}
	// item 301 has no history yet
	history := map[string]map[string]string{
		"101": {"itemid": "101", "clock": "1700000000", "value": "45.5", "ns": "0"},
		"201": {"itemid": "201", "clock": "1700000000", "value": "1.25", "ns": "0"},
		"501": {"itemid": "501", "clock": "1700000000", "value": "30", "ns": "0"},
	}
	f.handle("item.get", func(params json.RawMessage) (any, *zbxdns.APIError) {
		var p struct {
			HostIDs []string          `json:"hostids"`
			Search  map[string]string `json:"search"`
		}
		_ = json.Unmarshal(params, &p)
		if p.Search["key_"] != zbxdns.IOWaitKey {
			return []any{}, nil
		}
		if item, ok := items[p.HostIDs[0]]; ok {
			return []map[string]string{item}, nil
		}
		return []any{}, nil
	})
	f.handle("history.get", func(params json.RawMessage) (any, *zbxdns.APIError) {
		var p struct {
			ItemIDs []string `json:"itemids"`
			Limit   int      `json:"limit"`
		}
		_ = json.Unmarshal(params, &p)
		if rec, ok := history[p.ItemIDs[0]]; ok && p.Limit == 1 {
			return []map[string]string{rec}, nil
		}
		return []any{}, nil
	})
	c := loggedInClient(t, f)

	samples, err := zbxdns.CheckIOWait(testContext(t), c, "42", zbxdns.DefaultIOWaitThreshold)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, zbxdns.IOWaitSample{
		HostID: "1",
		Name:   "db01",
		Value:  45.5,
		Clock:  time.Unix(1700000000, 0),
	}, samples[0])

	var p struct {
		History   int    `json:"history"`
		SortField string `json:"sortfield"`
		SortOrder string `json:"sortorder"`
	}
	require.NoError(t, json.Unmarshal(f.callsTo("history.get")[0].Params, &p))
	assert.Equal(t, 0, p.History)
	assert.Equal(t, "clock", p.SortField)
	assert.Equal(t, "DESC", p.SortOrder)
}

func TestCheckIOWaitBadValue(t *testing.T) {
	f := newFakeZabbix(t)
	f.session("tok", "42", "infra")
	f.result("host.get", []map[string]string{{"hostid": "1", "host": "db01", "name": "db01"}})
	f.result("item.get", []map[string]string{{"itemid": "101", "hostid": "1", "key_": zbxdns.IOWaitKey, "value_type": "0"}})
	f.result("history.get", []map[string]string{{"itemid": "101", "clock": "1700000000", "value": "n/a"}})
	c := loggedInClient(t, f)

	samples, err := zbxdns.CheckIOWait(testContext(t), c, "42", 10)
	assert.Empty(t, samples)
	assert.ErrorContains(t, err, "db01")
}

func TestWriteIOWaitMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zabbix_iowait.prom")
	err := zbxdns.WriteIOWaitMetrics(path, []zbxdns.IOWaitSample{
		{HostID: "1", Name: "db01", Value: 45.5},
		{HostID: "7", Name: "db02", Value: 31},
	})
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, `zabbix_host_cpu_iowait_percent{host="db01",hostid="1"} 45.5`)
	assert.Contains(t, out, `zabbix_host_cpu_iowait_percent{host="db02",hostid="7"} 31`)
	assert.Contains(t, out, "zabbix_hosts_iowait_over_threshold 2")
}

func TestWriteIOWaitMetricsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zabbix_iowait.prom")
	require.NoError(t, zbxdns.WriteIOWaitMetrics(path, nil))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "zabbix_hosts_iowait_over_threshold 0")
	assert.NotContains(t, string(b), "zabbix_host_cpu_iowait_percent{")
}
