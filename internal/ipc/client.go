package ipc

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Common client errors.
var (
	ErrNotConnected     = errors.New("not connected to daemon")
	ErrDaemonNotRunning = errors.New("daemon is not running")
	ErrRequestFailed    = errors.New("request failed")
)

// ClientConfig configures the IPC client.
type ClientConfig struct {
	SocketPath     string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// DefaultClientConfig returns sensible defaults for the given socket path.
func DefaultClientConfig(socketPath string) ClientConfig {
	return ClientConfig{
		SocketPath:     socketPath,
		ConnectTimeout: 5 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// Client is a synchronous request/response client for the daemon socket.
// One request is in flight at a time.
type Client struct {
	cfg ClientConfig

	mu        sync.Mutex
	conn      net.Conn
	nextReqID atomic.Uint32
}

// NewClient creates a client. Connect must be called before requests.
func NewClient(cfg ClientConfig) *Client {
	return &Client{cfg: cfg}
}

// Connect dials the daemon socket.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("unix", c.cfg.SocketPath, c.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
	}
	c.conn = conn
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// request sends one message and decodes the matching response into out.
// A nil out discards the response payload.
func (c *Client) request(msgType MessageType, payload any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = Encode(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	id := c.nextReqID.Add(1)
	msg := NewMessage(msgType, id, body)

	deadline := time.Now().Add(c.cfg.RequestTimeout)
	c.conn.SetWriteDeadline(deadline)
	if err := msg.Write(c.conn); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	c.conn.SetReadDeadline(deadline)
	resp, err := ReadMessage(c.conn)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.Header.RequestID != id {
		return fmt.Errorf("response id mismatch: got %d, want %d", resp.Header.RequestID, id)
	}

	if resp.Header.Type == MsgError {
		var errResp ErrorResponse
		if err := Decode(resp.Payload, &errResp); err != nil {
			return fmt.Errorf("%w: undecodable error response", ErrRequestFailed)
		}
		return fmt.Errorf("%w: %s", ErrRequestFailed, errResp.Message)
	}

	if out != nil && len(resp.Payload) > 0 {
		if err := Decode(resp.Payload, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// ackRequest sends a request expecting an AckResponse and surfaces its
// embedded error.
func (c *Client) ackRequest(msgType MessageType, payload any) error {
	var ack AckResponse
	if err := c.request(msgType, payload, &ack); err != nil {
		return err
	}
	if !ack.Success {
		return fmt.Errorf("%w: %s", ErrRequestFailed, ack.Error)
	}
	return nil
}

// Ping checks connectivity.
func (c *Client) Ping() error {
	return c.request(MsgPing, nil, nil)
}

// Status fetches the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.request(MsgStatusRequest, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause suspends auto-correction.
func (c *Client) Pause() error {
	return c.ackRequest(MsgPause, nil)
}

// Resume re-enables auto-correction.
func (c *Client) Resume() error {
	return c.ackRequest(MsgResume, nil)
}

// ConvertSelection converts the current selection to the opposite layout.
func (c *Client) ConvertSelection() error {
	return c.ackRequest(MsgConvertSelection, nil)
}

// AddWord adds a word to the personal dictionary.
func (c *Client) AddWord(word, language string) error {
	return c.ackRequest(MsgDictAdd, &DictWordRequest{Word: word, Language: language})
}

// RemoveWord removes a word from the personal dictionary.
func (c *Client) RemoveWord(word, language string) error {
	return c.ackRequest(MsgDictRemove, &DictWordRequest{Word: word, Language: language})
}

// Words lists the personal dictionary.
func (c *Client) Words() ([]DictEntry, error) {
	var resp DictListResponse
	if err := c.request(MsgDictList, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// ReloadDictionaries re-reads the word lists from disk.
func (c *Client) ReloadDictionaries() error {
	return c.ackRequest(MsgDictReload, nil)
}

// Exclude adds a token to the never-correct list.
func (c *Client) Exclude(token string) error {
	return c.ackRequest(MsgExclude, &ExcludeRequest{Token: token})
}

// Unexclude removes a token from the never-correct list.
func (c *Client) Unexclude(token string) error {
	return c.ackRequest(MsgUnexclude, &ExcludeRequest{Token: token})
}

// Exclusions lists the never-correct tokens.
func (c *Client) Exclusions() ([]string, error) {
	var resp ExclusionsResponse
	if err := c.request(MsgExclusions, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown() error {
	return c.ackRequest(MsgShutdown, nil)
}
