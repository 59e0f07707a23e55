package zbxdns_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Travis-Britz/zbxdns"
)

// fakeZabbix is an in-process Zabbix JSON-RPC endpoint.
// Methods without a handler answer with a "Method not found." error.
type fakeZabbix struct {
	*httptest.Server

	mu       sync.Mutex
	calls    []zabbixCall
	handlers map[string]func(params json.RawMessage) (any, *zbxdns.APIError)
}

type zabbixCall struct {
	Method        string
	Params        json.RawMessage
	JSONRPC       string
	ID            int64
	BodyAuth      string
	Authorization string
	ContentType   string
}

func newFakeZabbix(t *testing.T) *fakeZabbix {
	t.Helper()
	f := &fakeZabbix{handlers: map[string]func(json.RawMessage) (any, *zbxdns.APIError){}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeZabbix) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
		Auth    string          `json:"auth"`
		ID      int64           `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls = append(f.calls, zabbixCall{
		Method:        req.Method,
		Params:        req.Params,
		JSONRPC:       req.JSONRPC,
		ID:            req.ID,
		BodyAuth:      req.Auth,
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
	})
	h, ok := f.handlers[req.Method]
	f.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if !ok {
		resp["error"] = zbxdns.APIError{Code: -32601, Message: "Method not found.", Data: "Incorrect API \"" + req.Method + "\"."}
	} else if result, apiErr := h(req.Params); apiErr != nil {
		resp["error"] = apiErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeZabbix) handle(method string, h func(params json.RawMessage) (any, *zbxdns.APIError)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

// result makes method always answer with v.
func (f *fakeZabbix) result(method string, v any) {
	f.handle(method, func(json.RawMessage) (any, *zbxdns.APIError) { return v, nil })
}

// fail makes method always answer with e.
func (f *fakeZabbix) fail(method string, e zbxdns.APIError) {
	f.handle(method, func(json.RawMessage) (any, *zbxdns.APIError) { return nil, &e })
}

// session installs a successful user.login and a single host group.
func (f *fakeZabbix) session(token, groupID, groupName string) {
	f.result("user.login", token)
	f.result("user.logout", true)
	f.handle("hostgroup.get", func(params json.RawMessage) (any, *zbxdns.APIError) {
		var p struct {
			Filter struct {
				Name []string `json:"name"`
			} `json:"filter"`
		}
		_ = json.Unmarshal(params, &p)
		if len(p.Filter.Name) == 1 && p.Filter.Name[0] == groupName {
			return []map[string]string{{"groupid": groupID, "name": groupName}}, nil
		}
		return []map[string]string{}, nil
	})
}

func (f *fakeZabbix) callsTo(method string) []zabbixCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []zabbixCall
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeZabbix) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

// loggedInClient returns a client that has already logged in to f.
func loggedInClient(t *testing.T, f *fakeZabbix) *zbxdns.ZabbixClient {
	t.Helper()
	c, err := zbxdns.NewZabbixClient(f.URL)
	if err != nil {
		t.Fatalf("NewZabbixClient: %s", err)
	}
	if err := c.Login(testContext(t), "Admin", "zabbix"); err != nil {
		t.Fatalf("Login: %s", err)
	}
	return c
}
