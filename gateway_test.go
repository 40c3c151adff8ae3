package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------- helpers ----------

// startGateway serves the gateway routes over httptest and returns the
// ws endpoint URL
func startGateway(t *testing.T, cfg Config) (*Gateway, *World, string) {
	t.Helper()
	world := NewWorld(cfg, nil)
	gate := NewGate(cfg)
	gw := NewGateway(cfg, world, gate, nil, "127.0.0.1:7777")

	srv := httptest.NewServer(gw.Routes())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	return gw, world, wsURL
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// wsSend writes one packet as a text frame
func wsSend(t *testing.T, conn *websocket.Conn, p Packet) {
	t.Helper()
	data, err := EncodePacket(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write %s: %v", p.PacketType(), err)
	}
}

// wsRecvText reads frames until a text packet arrives, skipping any
// interleaved binary state pushes
func wsRecvText(t *testing.T, conn *websocket.Conn) Packet {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		pkt, err := DecodePacket(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		return pkt
	}
}

// wsConnect performs the name handshake and returns the assigned id
func wsConnect(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()
	wsSend(t, conn, ConnectPacket{Name: name})
	pkt := wsRecvText(t, conn)
	welcome, ok := pkt.(PlayerIDPacket)
	if !ok {
		t.Fatalf("expected player_id, got %s", pkt.PacketType())
	}
	return welcome.PlayerID
}

// ---------- websocket protocol ----------

func TestGatewayConnect(t *testing.T) {
	_, world, wsURL := startGateway(t, testConfig())

	conn := dialWS(t, wsURL)
	id := wsConnect(t, conn, "webby")

	if !uuidRegex.MatchString(id) {
		t.Errorf("player id %q is not a UUID v4", id)
	}
	if world.PlayerCount() != 1 {
		t.Errorf("expected 1 registered player, got %d", world.PlayerCount())
	}
}

func TestGatewayDuplicateName(t *testing.T) {
	_, _, wsURL := startGateway(t, testConfig())

	c1 := dialWS(t, wsURL)
	wsConnect(t, c1, "taken")

	c2 := dialWS(t, wsURL)
	wsSend(t, c2, ConnectPacket{Name: "taken"})
	pkt := wsRecvText(t, c2)
	if _, ok := pkt.(UsernameTakenPacket); !ok {
		t.Fatalf("expected username_taken, got %s", pkt.PacketType())
	}
}

func TestGatewayCommands(t *testing.T) {
	_, _, wsURL := startGateway(t, testConfig())

	conn := dialWS(t, wsURL)
	id := wsConnect(t, conn, "webby")

	wsSend(t, conn, GetGameStatePacket{})
	pkt := wsRecvText(t, conn)
	before, ok := pkt.(GameStatePacket)
	if !ok {
		t.Fatalf("expected game_state, got %s", pkt.PacketType())
	}
	me := before.Players[id]

	dx := 1.0
	if me.X > 1000 {
		dx = -1
	}
	wsSend(t, conn, MovePacket{DX: dx})
	wsSend(t, conn, SkillPacket{SkillName: SkillPush})
	wsSend(t, conn, GetGameStatePacket{})

	pkt = wsRecvText(t, conn)
	after, ok := pkt.(GameStatePacket)
	if !ok {
		t.Fatalf("expected game_state, got %s", pkt.PacketType())
	}
	want := me.X + dx*testConfig().StartVelocity
	if got := after.Players[id].X; got != want {
		t.Errorf("expected X %f after move, got %f", want, got)
	}
	if !after.Players[id].PushActive {
		t.Error("push should report active")
	}
}

func TestGatewayPing(t *testing.T) {
	_, _, wsURL := startGateway(t, testConfig())

	conn := dialWS(t, wsURL)
	wsConnect(t, conn, "pinger")

	wsSend(t, conn, PingPacket{})
	pkt := wsRecvText(t, conn)
	if _, ok := pkt.(PongPacket); !ok {
		t.Fatalf("expected pong, got %s", pkt.PacketType())
	}
}

func TestGatewayCommandBeforeConnectIgnored(t *testing.T) {
	_, world, wsURL := startGateway(t, testConfig())

	conn := dialWS(t, wsURL)
	wsSend(t, conn, MovePacket{DX: 1})

	// The frame is dropped without registering anyone; the handshake
	// still works afterwards
	wsConnect(t, conn, "late")
	if world.PlayerCount() != 1 {
		t.Errorf("expected 1 registered player, got %d", world.PlayerCount())
	}
}

func TestGatewayDisconnectCleansUp(t *testing.T) {
	gw, world, wsURL := startGateway(t, testConfig())

	conn := dialWS(t, wsURL)
	wsConnect(t, conn, "drifter")
	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for world.PlayerCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if world.PlayerCount() != 0 {
		t.Fatal("player should be deregistered after the socket drops")
	}
	if gw.gate.Conns() != 0 {
		t.Errorf("gate should be released, got %d connections", gw.gate.Conns())
	}
}

// ---------- broadcast ----------

func TestGatewayBroadcast(t *testing.T) {
	cfg := testConfig()
	cfg.BroadcastInterval = 20 * time.Millisecond
	gw, _, wsURL := startGateway(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		gw.Run(ctx)
	}()
	defer func() { cancel(); <-done }()

	conn := dialWS(t, wsURL)
	id := wsConnect(t, conn, "watcher")

	// Wait for an unsolicited binary push and decode it
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		var state GameStatePacket
		if err := msgpack.Unmarshal(data, &state); err != nil {
			t.Fatalf("unmarshal state push: %v", err)
		}
		if _, ok := state.Players[id]; !ok {
			t.Error("state push should include the connected player")
		}
		if len(state.Balls) != cfg.FoodMin {
			t.Errorf("expected %d food balls, got %d", cfg.FoodMin, len(state.Balls))
		}
		return
	}
}

// ---------- rate limiting ----------

func TestGatewayAdmissionRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.IPWindowLimit = 1
	_, _, wsURL := startGateway(t, cfg)

	c1 := dialWS(t, wsURL)
	wsConnect(t, c1, "first")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected the second dial to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %+v", resp)
	}
}

func TestGatewayMessageRateDisconnect(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMessagesPerSec = 1
	_, world, wsURL := startGateway(t, cfg)

	conn := dialWS(t, wsURL)
	wsConnect(t, conn, "flooder")

	for i := 0; i < 10; i++ {
		data, _ := EncodePacket(MovePacket{DX: 1})
		conn.WriteMessage(websocket.TextMessage, data)
	}

	deadline := time.Now().Add(3 * time.Second)
	for world.PlayerCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if world.PlayerCount() != 0 {
		t.Error("flooding past the message rate should cost the connection")
	}
}

// ---------- http endpoints ----------

func TestGatewayQR(t *testing.T) {
	cfg := testConfig()
	world := NewWorld(cfg, nil)
	gw := NewGateway(cfg, world, NewGate(cfg), nil, "192.168.1.10:7777")
	srv := httptest.NewServer(gw.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/qr")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG image")
	}
}

func TestGatewayStatus(t *testing.T) {
	_, _, wsURL := startGateway(t, testConfig())

	conn := dialWS(t, wsURL)
	wsConnect(t, conn, "counted")

	httpURL := "http" + strings.TrimSuffix(strings.TrimPrefix(wsURL, "ws"), "/ws")
	resp, err := http.Get(httpURL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var status statusReply
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status.Players != 1 {
		t.Errorf("expected 1 player, got %d", status.Players)
	}
	if status.Food != testConfig().FoodMin {
		t.Errorf("expected %d food, got %d", testConfig().FoodMin, status.Food)
	}
	if status.Connections != 1 {
		t.Errorf("expected 1 connection, got %d", status.Connections)
	}
	if status.GameTime <= 0 {
		t.Errorf("expected running game time, got %f", status.GameTime)
	}
}
