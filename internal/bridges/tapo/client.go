package tapo

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // Vendor protocol hashes the account email with SHA-1
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-energy/internal/bridges"
)

// Vendor error codes observed across firmware revisions. The local API
// often reports a bare code with no message; these spellings match the
// vendor app so message-based classification treats both the same way.
var vendorMessages = map[int]string{
	-1002: "incorrect request",
	-1003: "json format error",
	-1008: "invalid parameters",
	-1010: "invalid public key length",
	-1501: "invalid credentials",
	9999:  "session timeout",
}

// sessionTimeoutCode marks an expired token. The bridge re-establishes
// the session once before giving up on the cycle.
const sessionTimeoutCode = 9999

// errSessionExpired is wrapped alongside the transient sentinel when
// the device reports a stale session token.
var errSessionExpired = errors.New("tapo: session expired")

// request is the vendor's call envelope.
type request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// response is the vendor's reply envelope. Some firmware reports a
// message alongside the code, some only the code.
type response struct {
	ErrorCode int             `json:"error_code"`
	Message   string          `json:"msg"`
	Result    json.RawMessage `json:"result"`
}

// Client speaks the vendor's JSON-over-HTTP envelope protocol.
//
// Every call POSTs {"method": ..., "params": ...} to the device's /app
// endpoint and receives {"error_code": N, "result": {...}}. A non-zero
// error code is a protocol-level failure and is classified against the
// bridge fault taxonomy here, at the edge, so callers only ever see
// authentication or transient faults.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a Client with the given overall HTTP timeout. The
// per-read deadline still comes from the caller's context; the HTTP
// timeout is a backstop for connections the context never covers.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Login establishes a device session and returns its token.
//
// Credentials are encoded the way the vendor app does: the username
// field carries the hex SHA-1 of the account email, and both fields are
// base64 wrapped. The device compares digests, so the account password
// never crosses the wire bare.
func (c *Client) Login(ctx context.Context, endpoint, username, password string) (string, error) {
	sum := sha1.Sum([]byte(username)) //nolint:gosec // Vendor protocol, not integrity protection
	hexSum := hex.EncodeToString(sum[:])

	result, err := c.call(ctx, endpoint, request{
		Method: "login_device",
		Params: map[string]string{
			"username": base64.StdEncoding.EncodeToString([]byte(hexSum)),
			"password": base64.StdEncoding.EncodeToString([]byte(password)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(result, &login); err != nil {
		return "", fmt.Errorf("login: %w: %v", bridges.ErrTransient, err)
	}
	if login.Token == "" {
		return "", fmt.Errorf("login: %w: empty session token", bridges.ErrTransient)
	}

	return login.Token, nil
}

// DeviceInfo fetches the device status payload.
func (c *Client) DeviceInfo(ctx context.Context, endpoint, token string) (map[string]any, error) {
	return c.fetch(ctx, endpoint, token, "get_device_info")
}

// EnergyUsage fetches the energy report payload.
func (c *Client) EnergyUsage(ctx context.Context, endpoint, token string) (map[string]any, error) {
	return c.fetch(ctx, endpoint, token, "get_energy_usage")
}

// fetch performs one envelope call with a session token and flattens
// the result object into a field map.
func (c *Client) fetch(ctx context.Context, endpoint, token, method string) (map[string]any, error) {
	result, err := c.call(ctx, endpoint+"?token="+token, request{Method: method})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(result, &fields); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", method, bridges.ErrTransient, err)
	}

	return fields, nil
}

// call POSTs one envelope and decodes the reply.
func (c *Client) call(ctx context.Context, url string, payload request) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", bridges.ErrTransient, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", bridges.ErrTransient, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bridges.ErrTransient, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Drained and closed for connection reuse

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", bridges.ErrTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", bridges.ErrTransient, resp.StatusCode)
	}

	var envelope response
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", bridges.ErrTransient, err)
	}

	if envelope.ErrorCode != 0 {
		return nil, classify(envelope.ErrorCode, envelope.Message)
	}

	return envelope.Result, nil
}

// classify maps a vendor error onto the bridge fault taxonomy.
//
// Credential rejections are recognised by message text rather than code
// alone: firmware revisions disagree on codes but consistently say
// "invalid credentials" in one spelling or another. The space-stripped,
// case-folded match catches both "Invalid Credentials" and the
// concatenated "invalidcredentials" some revisions emit.
func classify(code int, message string) error {
	if message == "" {
		message = vendorMessages[code]
	}

	flat := strings.ToLower(strings.ReplaceAll(message, " ", ""))
	if strings.Contains(flat, "invalidcredentials") {
		return fmt.Errorf("%w: %s (code %d)", bridges.ErrAuthentication, message, code)
	}

	if code == sessionTimeoutCode {
		return fmt.Errorf("%w: %w (code %d)", bridges.ErrTransient, errSessionExpired, code)
	}

	if message == "" {
		return fmt.Errorf("%w: vendor error code %d", bridges.ErrTransient, code)
	}
	return fmt.Errorf("%w: %s (code %d)", bridges.ErrTransient, message, code)
}
