package main

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"
)

// ClientConfig holds the connecting side's tunables
type ClientConfig struct {
	Timeout           time.Duration // per-operation I/O deadline
	ReconnectAttempts int
	ReconnectDelay    time.Duration // base delay, grows by ReconnectBackoff per attempt
	ReconnectBackoff  float64
	SendRetries       int // extra attempts per request after the first
	MaxMessageSize    int
}

// DefaultClientConfig returns the standard client setup
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:           5 * time.Second,
		ReconnectAttempts: 3,
		ReconnectDelay:    time.Second,
		ReconnectBackoff:  1.5,
		SendRetries:       4,
		MaxMessageSize:    10 << 20,
	}
}

// Client is the connecting side of the protocol: dial and handshake, then
// framed request/response. Server pings are answered transparently and
// failed sends retry over a fresh connection with exponential backoff.
type Client struct {
	addr string
	cfg  ClientConfig

	mu       sync.Mutex
	conn     net.Conn
	br       *bufio.Reader
	name     string
	playerID string
}

// NewClient creates a client for the server at addr
func NewClient(addr string, cfg ClientConfig) *Client {
	return &Client{addr: addr, cfg: cfg}
}

// Connect dials the server and performs the name handshake. A name
// collision surfaces as ErrUsernameTaken, a full server as ErrServerFull.
func (c *Client) Connect(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	conn, err := net.DialTimeout("tcp", c.addr, c.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	conn.SetDeadline(time.Now().Add(c.cfg.Timeout))

	data, err := EncodePacket(ConnectPacket{Name: c.name})
	if err != nil {
		conn.Close()
		return err
	}
	if err := WriteFrame(conn, data); err != nil {
		conn.Close()
		return fmt.Errorf("handshake write: %w", err)
	}

	br := bufio.NewReaderSize(conn, readBufSize)
	payload, err := ReadFrame(br, c.cfg.MaxMessageSize)
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake read: %w", err)
	}
	pkt, err := DecodePacket(payload)
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}

	switch p := pkt.(type) {
	case PlayerIDPacket:
		conn.SetDeadline(time.Time{})
		c.conn = conn
		c.br = br
		c.playerID = p.PlayerID
		return nil
	case UsernameTakenPacket:
		conn.Close()
		return ErrUsernameTaken
	case ServerFullPacket:
		conn.Close()
		return ErrServerFull
	default:
		conn.Close()
		return &ProtocolError{Reason: "unexpected handshake reply " + pkt.PacketType()}
	}
}

// PlayerID returns the id assigned at connect, empty before then
func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// Connected reports whether a live connection exists
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close shuts the session down; safe to call more than once
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.br = nil
	return err
}

// Send writes one packet without waiting for a reply
func (c *Client) Send(p Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(p)
}

func (c *Client) sendLocked(p Packet) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	data, err := EncodePacket(p)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.Timeout))
	return WriteFrame(c.conn, data)
}

// Receive reads the next packet. Server pings are answered in place and
// never surface to the caller; the wait continues for a real message.
func (c *Client) Receive() (Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receiveLocked()
}

func (c *Client) receiveLocked() (Packet, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	for {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.Timeout))
		payload, err := ReadFrame(c.br, c.cfg.MaxMessageSize)
		if err != nil {
			return nil, err
		}
		pkt, err := DecodePacket(payload)
		if err != nil {
			return nil, err
		}
		if _, isPing := pkt.(PingPacket); isPing {
			if err := c.sendLocked(PongPacket{}); err != nil {
				return nil, err
			}
			continue
		}
		return pkt, nil
	}
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.br = nil
	}
}

// reconnectLocked redials with exponential backoff over a bounded number
// of attempts: delay = base * backoff^(attempt-1). Handshake rejections
// are final; waiting will not free the name or the server.
func (c *Client) reconnectLocked() error {
	c.dropLocked()
	var lastErr error
	for attempt := 1; attempt <= c.cfg.ReconnectAttempts; attempt++ {
		delay := time.Duration(float64(c.cfg.ReconnectDelay) * math.Pow(c.cfg.ReconnectBackoff, float64(attempt-1)))
		time.Sleep(delay)
		if lastErr = c.connectLocked(); lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrUsernameTaken) || errors.Is(lastErr, ErrServerFull) {
			return lastErr
		}
	}
	return fmt.Errorf("reconnect failed after %d attempts: %w", c.cfg.ReconnectAttempts, lastErr)
}

// SendWithRetry sends p and waits for the reply. Every failure mode is
// treated the same way: drop the connection and retry over a fresh one
// until the retry budget runs out.
func (c *Client) SendWithRetry(p Packet) (Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= c.cfg.SendRetries; attempt++ {
		if c.conn == nil {
			if lastErr = c.reconnectLocked(); lastErr != nil {
				break
			}
		}
		if lastErr = c.sendLocked(p); lastErr != nil {
			c.dropLocked()
			continue
		}
		resp, err := c.receiveLocked()
		if err != nil {
			lastErr = err
			c.dropLocked()
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("send %s: %w", p.PacketType(), lastErr)
}

// GetGameState requests a fresh snapshot
func (c *Client) GetGameState() (GameStatePacket, error) {
	resp, err := c.SendWithRetry(GetGameStatePacket{})
	if err != nil {
		return GameStatePacket{}, err
	}
	st, ok := resp.(GameStatePacket)
	if !ok {
		return GameStatePacket{}, &ProtocolError{Reason: "expected game_state, got " + resp.PacketType()}
	}
	return st, nil
}

// Ping round-trips a liveness probe
func (c *Client) Ping() error {
	resp, err := c.SendWithRetry(PingPacket{})
	if err != nil {
		return err
	}
	if _, ok := resp.(PongPacket); !ok {
		return &ProtocolError{Reason: "expected pong, got " + resp.PacketType()}
	}
	return nil
}

// Move sends one movement command; the server does not reply
func (c *Client) Move(dx, dy float64) error {
	return c.Send(MovePacket{DX: dx, DY: dy})
}

// UseSkill activates the named skill
func (c *Client) UseSkill(name string) error {
	return c.Send(SkillPacket{SkillName: name})
}
