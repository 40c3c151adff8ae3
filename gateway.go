package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	wsWriteWait   = 10 * time.Second
	wsPongWait    = 60 * time.Second
	wsPingPeriod  = (wsPongWait * 9) / 10
	wsSendBufSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Gateway bridges WebSocket clients onto the arena. Text frames carry
// the same flat JSON packets as the TCP protocol, without the length
// prefix; binary frames are msgpack-encoded state pushes.
type Gateway struct {
	cfg      Config
	world    *World
	gate     *Gate
	journal  *Journal
	gameAddr string // advertised TCP address, also served as a QR code

	mu      sync.Mutex
	clients map[*wsClient]bool
}

// NewGateway creates a gateway sharing the TCP server's world and gate
func NewGateway(cfg Config, world *World, gate *Gate, journal *Journal, gameAddr string) *Gateway {
	return &Gateway{
		cfg:      cfg,
		world:    world,
		gate:     gate,
		journal:  journal,
		gameAddr: gameAddr,
		clients:  make(map[*wsClient]bool),
	}
}

// Routes configures the gateway's HTTP endpoints
func (gw *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.handleWS)
	mux.HandleFunc("/qr", gw.handleQR)
	mux.HandleFunc("/status", gw.handleStatus)
	return mux
}

// Run pushes world state to every connected client at the broadcast
// interval until ctx is done
func (gw *Gateway) Run(ctx context.Context) error {
	ticker := time.NewTicker(gw.cfg.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			gw.closeAll()
			return nil
		case <-ticker.C:
			gw.broadcast()
		}
	}
}

// broadcast snapshots the world once and fans it out as binary frames
func (gw *Gateway) broadcast() {
	gw.mu.Lock()
	n := len(gw.clients)
	gw.mu.Unlock()
	if n == 0 {
		return
	}

	data, err := msgpack.Marshal(gw.world.Snapshot())
	if err != nil {
		log.Printf("gateway: marshal state: %v", err)
		return
	}

	gw.mu.Lock()
	for c := range gw.clients {
		c.SendBinary(data)
	}
	gw.mu.Unlock()
}

func (gw *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	ip := extractIP(r)
	switch gw.gate.Admit(ip, time.Now()) {
	case GateRateLimited:
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	case GateFull:
		http.Error(w, "server full", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		gw.gate.Release()
		log.Printf("gateway: upgrade: %v", err)
		return
	}

	c := newWSClient(gw, conn, ip)
	gw.register(c)

	go c.WritePump()
	go c.ReadPump()
}

// handleQR serves the game address as a scannable PNG
func (gw *Gateway) handleQR(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(gw.gameAddr, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "qr encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

type statusReply struct {
	Players     int        `json:"players"`
	Food        int        `json:"food"`
	GameTime    float64    `json:"game_time"`
	Tick        uint64     `json:"tick"`
	Connections int        `json:"connections"`
	TopScores   []ScoreRow `json:"top_scores,omitempty"`
}

func (gw *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	reply := statusReply{
		Players:     gw.world.PlayerCount(),
		Food:        gw.world.FoodCount(),
		GameTime:    gw.world.GameTime(),
		Tick:        gw.world.Tick(),
		Connections: gw.gate.Conns(),
	}
	if gw.journal != nil {
		if rows, err := gw.journal.TopScores(10); err == nil {
			reply.TopScores = rows
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reply)
}

func (gw *Gateway) register(c *wsClient) {
	gw.mu.Lock()
	gw.clients[c] = true
	gw.mu.Unlock()
}

func (gw *Gateway) unregister(c *wsClient) {
	gw.mu.Lock()
	if _, ok := gw.clients[c]; ok {
		delete(gw.clients, c)
		close(c.send)
	}
	gw.mu.Unlock()
}

func (gw *Gateway) closeAll() {
	gw.mu.Lock()
	for c := range gw.clients {
		c.conn.Close()
	}
	gw.mu.Unlock()
}

// wsClient is one WebSocket connection
type wsClient struct {
	gw         *Gateway
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	playerID   string
	msgCount   int
	msgResetAt time.Time
}

func newWSClient(gw *Gateway, conn *websocket.Conn, remoteAddr string) *wsClient {
	return &wsClient{
		gw:         gw,
		conn:       conn,
		send:       make(chan []byte, wsSendBufSize),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads packets from the connection until it drops
func (c *wsClient) ReadPump() {
	defer func() {
		c.gw.unregister(c)
		c.gw.gate.Release()
		if c.playerID != "" {
			c.gw.world.RemovePlayer(c.playerID)
			log.Printf("gateway: player %s disconnected", c.playerID)
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(MaxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("gateway: ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > c.gw.cfg.MaxMessagesPerSec {
			log.Printf("gateway: rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handlePacket(message)
	}
}

// WritePump writes queued messages and keep-alive pings
func (c *wsClient) WritePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handlePacket decodes and dispatches one text frame. The first packet
// must be connect; after registration the commands match the TCP
// protocol.
func (c *wsClient) handlePacket(raw []byte) {
	pkt, err := DecodePacket(raw)
	if err != nil {
		log.Printf("gateway: bad packet from %s: %v", c.remoteAddr, err)
		return
	}

	if c.playerID == "" {
		connect, ok := pkt.(ConnectPacket)
		if !ok {
			return
		}
		player, err := c.gw.world.AddPlayer(connect.Name)
		if err != nil {
			if errors.Is(err, ErrUsernameTaken) {
				c.SendPacket(UsernameTakenPacket{Message: "username already taken"})
			}
			return
		}
		c.playerID = player.ID
		c.SendPacket(PlayerIDPacket{PlayerID: player.ID})
		log.Printf("gateway: player %s joined as %q", player.ID, connect.Name)
		return
	}

	switch p := pkt.(type) {
	case MovePacket:
		c.gw.world.MovePlayer(c.playerID, p.DX, p.DY)
	case SkillPacket:
		if !c.gw.world.ActivateSkill(c.playerID, p.SkillName) {
			log.Printf("gateway: unknown skill %q from player %s", p.SkillName, c.playerID)
		}
	case GetGameStatePacket:
		c.SendPacket(c.gw.world.Snapshot())
	case PingPacket:
		c.SendPacket(PongPacket{})
	case ConnectPacket:
		// already registered, ignore
	default:
		log.Printf("gateway: unexpected %s packet from %s", pkt.PacketType(), c.remoteAddr)
	}
}

// SendPacket encodes a packet and queues it as a text frame
func (c *wsClient) SendPacket(p Packet) {
	data, err := EncodePacket(p)
	if err != nil {
		log.Printf("gateway: encode: %v", err)
		return
	}
	c.sendRaw(data)
}

// sendRaw queues bytes for WritePump, dropping when the client is slow
func (c *wsClient) sendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
	}
}

// SendBinary queues pre-marshaled bytes as a binary WebSocket message.
// The 0xFF marker byte tells WritePump which frame type to use.
func (c *wsClient) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}
