package zbxdns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const jsonrpcVersion = "2.0"

// Method is a JSON-RPC method name bound to the shape of its params and result.
//
//	hosts, err := zbxdns.Method[map[string]any, []zbxdns.Host]("host.get").Call(ctx, client, params)
type Method[P, R any] string

// Call sends params to the Zabbix API and decodes the result member into R.
//
// A response carrying an error member is returned as an *APIError.
// A response with neither error nor result returns ErrNoResult.
func (m Method[P, R]) Call(ctx context.Context, c *ZabbixClient, params P) (R, error) {
	var result R
	raw, err := c.call(ctx, string(m), params)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("%s: error decoding result: %w, result: %s", m, err, raw)
	}
	return result, nil
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	Auth    string `json:"auth,omitempty"`
	ID      int64  `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *APIError       `json:"error"`
	ID      int64           `json:"id"`
}

// APIError is the error member of a JSON-RPC response, exactly as the server sent it.
// Zabbix sends data as a string; any other JSON value is kept in Data as its raw JSON text.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *APIError) UnmarshalJSON(b []byte) error {
	var raw struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*e = APIError{Code: raw.Code, Message: raw.Message}
	if len(raw.Data) == 0 || bytes.Equal(raw.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw.Data, &e.Data); err != nil {
		e.Data = string(raw.Data)
	}
	return nil
}

func (e *APIError) Error() string {
	if e.Data == "" {
		return fmt.Sprintf("zabbix error: %s, code: %d", e.Message, e.Code)
	}
	return fmt.Sprintf("zabbix error: %s, code: %d, data: %s", e.Message, e.Code, e.Data)
}

// call performs one request/response exchange.
// Methods other than user.login carry the session token once one is held.
func (c *ZabbixClient) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.id++
	req := request{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  params,
		ID:      c.id,
	}
	authenticated := c.token != "" && method != methodUserLogin
	if authenticated && c.legacyAuth {
		req.Auth = c.token
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s: error encoding request: %w", method, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: error creating request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if authenticated {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: http request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: http request returned %s", method, resp.Status)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%s: error decoding response: %w", method, err)
	}
	if r.Error != nil {
		return nil, fmt.Errorf("%s: %w", method, r.Error)
	}
	if len(r.Result) == 0 || bytes.Equal(r.Result, []byte("null")) {
		return nil, fmt.Errorf("%s: %w", method, ErrNoResult)
	}
	return r.Result, nil
}
