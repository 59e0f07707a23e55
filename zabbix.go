package zbxdns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const (
	methodUserLogin = "user.login"

	// DefaultAgentPort is the port given to agent interfaces created by CreateHost.
	DefaultAgentPort = "10050"
)

// Interface types as reported in HostInterface.Type.
const (
	AgentInterface = "1"
	SNMPInterface  = "2"
	IPMIInterface  = "3"
	JMXInterface   = "4"
)

var (
	userLogin           = Method[loginParams, string](methodUserLogin)
	userLogout          = Method[[]string, bool]("user.logout")
	hostGroupGet        = Method[hostGroupGetParams, []HostGroup]("hostgroup.get")
	hostCreate          = Method[hostCreateParams, hostIDs]("host.create")
	hostGet             = Method[hostGetParams, []Host]("host.get")
	hostUpdate          = Method[hostUpdateParams, hostIDs]("host.update")
	hostInterfaceUpdate = Method[interfaceUpdateParams, interfaceIDs]("hostinterface.update")
	itemGet             = Method[itemGetParams, []Item]("item.get")
	historyGet          = Method[historyGetParams, []HistoryRecord]("history.get")
)

// HostGroup is a Zabbix host group.
type HostGroup struct {
	GroupID string `json:"groupid"`
	Name    string `json:"name"`
}

// Host is a host as returned by host.get.
// Interfaces is only populated when the request selected them.
type Host struct {
	HostID     string          `json:"hostid"`
	Host       string          `json:"host"`
	Name       string          `json:"name"`
	Interfaces []HostInterface `json:"interfaces,omitempty"`
}

// HostInterface is a host interface as returned by host.get.
// Zabbix reports every field as a string.
type HostInterface struct {
	InterfaceID string `json:"interfaceid"`
	HostID      string `json:"hostid"`
	Type        string `json:"type"`
	Main        string `json:"main"`
	UseIP       string `json:"useip"`
	IP          string `json:"ip"`
	DNS         string `json:"dns"`
	Port        string `json:"port"`
}

// Item is a monitored item as returned by item.get.
type Item struct {
	ItemID    string `json:"itemid"`
	HostID    string `json:"hostid"`
	Key       string `json:"key_"`
	ValueType string `json:"value_type"`
}

// HistoryRecord is one collected value as returned by history.get.
type HistoryRecord struct {
	ItemID string `json:"itemid"`
	Clock  string `json:"clock"`
	Value  string `json:"value"`
	NS     string `json:"ns"`
}

type loginParams struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

type hostGroupGetParams struct {
	Output []string            `json:"output"`
	Filter map[string][]string `json:"filter"`
}

type hostCreateParams struct {
	Host       string           `json:"host"`
	Name       string           `json:"name"`
	Interfaces []agentInterface `json:"interfaces"`
	Groups     []groupRef       `json:"groups"`
}

type agentInterface struct {
	Type  int    `json:"type"`
	Main  int    `json:"main"`
	UseIP int    `json:"useip"`
	IP    string `json:"ip"`
	DNS   string `json:"dns"`
	Port  string `json:"port"`
}

type groupRef struct {
	GroupID string `json:"groupid"`
}

type hostIDs struct {
	HostIDs []string `json:"hostids"`
}

type hostGetParams struct {
	Output           []string `json:"output"`
	GroupIDs         []string `json:"groupids"`
	SelectInterfaces []string `json:"selectInterfaces,omitempty"`
}

type hostUpdateParams struct {
	HostID string `json:"hostid"`
	Name   string `json:"name"`
}

type interfaceUpdateParams struct {
	InterfaceID string `json:"interfaceid"`
	IP          string `json:"ip"`
}

type interfaceIDs struct {
	InterfaceIDs []string `json:"interfaceids"`
}

type itemGetParams struct {
	Output  []string          `json:"output"`
	HostIDs []string          `json:"hostids"`
	Search  map[string]string `json:"search"`
}

type historyGetParams struct {
	Output    string   `json:"output"`
	History   int      `json:"history"`
	ItemIDs   []string `json:"itemids"`
	SortField string   `json:"sortfield"`
	SortOrder string   `json:"sortorder"`
	Limit     int      `json:"limit"`
}

// ZabbixClient is a JSON-RPC client for the Zabbix API.
//
// It holds the session token obtained by Login and attaches it to every later call.
// A ZabbixClient is not safe for concurrent use.
type ZabbixClient struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
	legacyAuth bool
	token      string
	id         int64
}

// NewZabbixClient returns a client for the api_jsonrpc.php endpoint at apiURL.
//
// The default transport opens a new connection for every call and sets no timeout;
// use SetHTTPClient to change that.
func NewZabbixClient(apiURL string) (*ZabbixClient, error) {
	if apiURL == "" {
		return nil, errors.New("zbxdns.NewZabbixClient: url cannot be empty")
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("zbxdns.NewZabbixClient: error parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("zbxdns.NewZabbixClient: unsupported url scheme %q", u.Scheme)
	}
	return &ZabbixClient{
		url:        u.String(),
		httpClient: defaultHTTPClient(),
		logger:     zap.NewNop(),
	}, nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			DisableKeepAlives: true,
		},
	}
}

func (c *ZabbixClient) SetHTTPClient(httpClient *http.Client) {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	c.httpClient = httpClient
}

func (c *ZabbixClient) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger.With(zap.String("component", "zabbix"))
}

// SetLegacyAuth makes authenticated calls also carry the token in the "auth" member of the request,
// which Zabbix servers before 6.4 require.
func (c *ZabbixClient) SetLegacyAuth(enabled bool) {
	c.legacyAuth = enabled
}

// Login authenticates with user.login and keeps the returned token for the life of the client.
// Any failure is returned as an *AuthError.
func (c *ZabbixClient) Login(ctx context.Context, user, password string) error {
	token, err := userLogin.Call(ctx, c, loginParams{User: user, Password: password})
	if err != nil {
		return &AuthError{User: user, Err: err}
	}
	if token == "" {
		return &AuthError{User: user, Err: errors.New("user.login returned an empty token")}
	}
	c.token = token
	c.logger.Debug("logged in", zap.String("user", user))
	return nil
}

// Logout invalidates the session token. It is a no-op when the client never logged in.
func (c *ZabbixClient) Logout(ctx context.Context) error {
	if c.token == "" {
		return nil
	}
	if _, err := userLogout.Call(ctx, c, []string{}); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// HostGroupID returns the id of the host group with exactly the given name.
func (c *ZabbixClient) HostGroupID(ctx context.Context, name string) (string, error) {
	groups, err := hostGroupGet.Call(ctx, c, hostGroupGetParams{
		Output: []string{"groupid", "name"},
		Filter: map[string][]string{"name": {name}},
	})
	if err != nil {
		return "", err
	}
	if len(groups) == 0 || groups[0].GroupID == "" {
		return "", fmt.Errorf("%w: %q", ErrGroupNotFound, name)
	}
	c.logger.Debug("found host group", zap.String("group", name), zap.String("groupid", groups[0].GroupID))
	return groups[0].GroupID, nil
}

// CreateHost creates a host with a single agent interface bound to host.Addr.
// The technical name and the visible name are both set to host.Hostname.
func (c *ZabbixClient) CreateHost(ctx context.Context, host HostRecord) (string, error) {
	port := host.Port
	if port == "" {
		port = DefaultAgentPort
	}
	res, err := hostCreate.Call(ctx, c, hostCreateParams{
		Host: host.Hostname,
		Name: host.Hostname,
		Interfaces: []agentInterface{{
			Type:  1,
			Main:  1,
			UseIP: 1,
			IP:    host.Addr.String(),
			DNS:   "",
			Port:  port,
		}},
		Groups: []groupRef{{GroupID: host.GroupID}},
	})
	if err != nil {
		return "", err
	}
	if len(res.HostIDs) == 0 {
		return "", fmt.Errorf("host.create: no host id returned for %s", host.Hostname)
	}
	return res.HostIDs[0], nil
}

// Hosts lists the hosts of a group. With withInterfaces set, each host's interfaces are included.
func (c *ZabbixClient) Hosts(ctx context.Context, groupID string, withInterfaces bool) ([]Host, error) {
	params := hostGetParams{
		Output:   []string{"hostid", "host", "name"},
		GroupIDs: []string{groupID},
	}
	if withInterfaces {
		params.SelectInterfaces = []string{"interfaceid", "hostid", "type", "main", "useip", "ip", "dns", "port"}
	}
	return hostGet.Call(ctx, c, params)
}

// UpdateHostName sets the visible name of a host.
func (c *ZabbixClient) UpdateHostName(ctx context.Context, hostID, name string) error {
	res, err := hostUpdate.Call(ctx, c, hostUpdateParams{HostID: hostID, Name: name})
	if err != nil {
		return err
	}
	if len(res.HostIDs) == 0 {
		return fmt.Errorf("host.update: no host id returned for host %s", hostID)
	}
	return nil
}

// UpdateInterfaceIP sets the IP address of a host interface.
func (c *ZabbixClient) UpdateInterfaceIP(ctx context.Context, interfaceID, ip string) error {
	res, err := hostInterfaceUpdate.Call(ctx, c, interfaceUpdateParams{InterfaceID: interfaceID, IP: ip})
	if err != nil {
		return err
	}
	if len(res.InterfaceIDs) == 0 {
		return fmt.Errorf("hostinterface.update: no interface id returned for interface %s", interfaceID)
	}
	return nil
}

// FindItem returns the first item of the host whose key contains key.
// The boolean is false when the host has no such item.
func (c *ZabbixClient) FindItem(ctx context.Context, hostID, key string) (Item, bool, error) {
	items, err := itemGet.Call(ctx, c, itemGetParams{
		Output:  []string{"itemid", "hostid", "key_", "value_type"},
		HostIDs: []string{hostID},
		Search:  map[string]string{"key_": key},
	})
	if err != nil || len(items) == 0 {
		return Item{}, false, err
	}
	return items[0], true, nil
}

// LatestValue returns the newest history record of an item.
// valueType selects the history table and must match the item's value_type.
func (c *ZabbixClient) LatestValue(ctx context.Context, itemID string, valueType int) (HistoryRecord, bool, error) {
	records, err := historyGet.Call(ctx, c, historyGetParams{
		Output:    "extend",
		History:   valueType,
		ItemIDs:   []string{itemID},
		SortField: "clock",
		SortOrder: "DESC",
		Limit:     1,
	})
	if err != nil || len(records) == 0 {
		return HistoryRecord{}, false, err
	}
	return records[0], true, nil
}
