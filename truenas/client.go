package truenas

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// DefaultSocket is where middlewared listens on a TrueNAS host.
const DefaultSocket = "/var/run/middleware/middlewared.sock"

// DefaultTimeout bounds one request and its response when no timeout is
// given.
const DefaultTimeout = 30 * time.Second

// Client speaks the middleware websocket protocol over a unix socket.
// Calls are serialized: the protocol has one outstanding request per
// connection.
type Client struct {
	socketPath    string
	apiKey        string
	timeout       time.Duration
	logger        *zap.Logger
	mu            sync.Mutex
	conn          *websocket.Conn
	requestID     atomic.Uint64
	authenticated bool
}

type ConnectRequest struct {
	Msg     string   `json:"msg"`
	Version string   `json:"version"`
	Support []string `json:"support"`
}

type ConnectResponse struct {
	Msg     string `json:"msg"`
	Session string `json:"session"`
}

type APIRequest struct {
	ID     string        `json:"id"`
	Msg    string        `json:"msg"`
	Method string        `json:"method"`
	Params []interface{} `json:"params,omitempty"`
}

type APIResponse struct {
	ID     string          `json:"id"`
	Msg    string          `json:"msg"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *APIError       `json:"error,omitempty"`
}

type APIError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Trace   interface{} `json:"trace,omitempty"` // string or object
}

// NewClient returns a client for the middleware socket. Connecting is
// deferred to the first call. A zero timeout means DefaultTimeout.
func NewClient(socketPath, apiKey string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if socketPath == "" {
		socketPath = DefaultSocket
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		socketPath: socketPath,
		apiKey:     apiKey,
		timeout:    timeout,
		logger:     logger.Named("middleware"),
	}, nil
}

// connect dials and, when an API key is set, logs in, so a connection
// replaced after a failure is authenticated again.
func (c *Client) connect() error {
	if c.conn != nil {
		return nil
	}

	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
	}

	wsDialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", c.socketPath)
		},
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := wsDialer.Dial("ws://localhost/websocket", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}

	c.conn = conn
	c.authenticated = false

	connectMsg := ConnectRequest{
		Msg:     "connect",
		Version: "1",
		Support: []string{"1"},
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	if err := c.conn.WriteJSON(connectMsg); err != nil {
		c.reset()
		return fmt.Errorf("failed to send connect message: %w", err)
	}

	var connectResp ConnectResponse
	if err := c.conn.ReadJSON(&connectResp); err != nil {
		c.reset()
		return fmt.Errorf("failed to read connect response: %w", err)
	}

	c.logger.Debug("connected", zap.String("socket", c.socketPath), zap.String("session", connectResp.Session))

	if connectResp.Msg != "connected" {
		c.reset()
		return fmt.Errorf("unexpected connect response: %s", connectResp.Msg)
	}

	if c.apiKey != "" {
		if err := c.login(); err != nil {
			c.reset()
			return err
		}
	}
	return nil
}

func (c *Client) login() error {
	result, err := c.roundTrip("auth.login_with_api_key", c.apiKey)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	var success bool
	if err := json.Unmarshal(result, &success); err != nil {
		return fmt.Errorf("failed to parse authentication response: %w", err)
	}

	if !success {
		return fmt.Errorf("authentication returned false")
	}

	c.authenticated = true
	c.logger.Debug("authenticated")
	return nil
}

// Authenticate connects and logs in with the API key. It is a no-op once
// the session is authenticated.
func (c *Client) Authenticate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(); err != nil {
		return err
	}
	if c.authenticated {
		return nil
	}
	if err := c.login(); err != nil {
		c.reset()
		return err
	}
	return nil
}

// Call invokes a middleware method and returns its raw result.
func (c *Client) Call(method string, params ...interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(); err != nil {
		return nil, err
	}
	return c.roundTrip(method, params...)
}

// roundTrip sends one request on the open connection and waits for its
// response, at most c.timeout for each direction.
func (c *Client) roundTrip(method string, params ...interface{}) (json.RawMessage, error) {
	id := fmt.Sprintf("%d", c.requestID.Add(1))

	req := APIRequest{
		ID:     id,
		Msg:    "method",
		Method: method,
		Params: params,
	}

	c.logger.Debug("request", zap.String("id", id), zap.String("method", method))

	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := c.conn.WriteJSON(req); err != nil {
		c.reset()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	var resp APIResponse
	c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	if err := c.conn.ReadJSON(&resp); err != nil {
		c.reset()
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.Msg == "failed" {
		if resp.Error != nil {
			return nil, formatAPIError(resp.Error)
		}
		return nil, fmt.Errorf("API call failed with no error details")
	}

	if resp.Error != nil {
		return nil, formatAPIError(resp.Error)
	}

	c.logger.Debug("response", zap.String("id", resp.ID), zap.Int("bytes", len(resp.Result)))

	return resp.Result, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) reset() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.authenticated = false
}

// formatAPIError formats an API error into a readable error message
func formatAPIError(apiErr *APIError) error {
	errMsg := fmt.Sprintf("API error: %s (code %d)", apiErr.Message, apiErr.Code)
	if traceStr, ok := apiErr.Trace.(string); ok && traceStr != "" {
		errMsg = fmt.Sprintf("%s\nTrace: %s", errMsg, traceStr)
	}
	return fmt.Errorf("%s", errMsg)
}
