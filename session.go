package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	readBufSize  = 64 << 10
	writeBufSize = 64 << 10
)

// Session lifecycle states
const (
	stateHandshake int32 = iota
	stateActive
	stateDraining
	stateClosed
)

// Session is one connected TCP client: a handshake, then a poll-read
// dispatch loop, then exactly-once cleanup.
type Session struct {
	cfg   Config
	world *World
	conn  net.Conn
	br    *bufio.Reader
	bw    *bufio.Writer

	writeMu sync.Mutex // serializes framed writes

	playerID string
	state    atomic.Int32
	closing  sync.Once

	msgCount   int
	msgResetAt time.Time
}

func newSession(cfg Config, world *World, conn net.Conn) *Session {
	return &Session{
		cfg:   cfg,
		world: world,
		conn:  conn,
		br:    bufio.NewReaderSize(conn, readBufSize),
		bw:    bufio.NewWriterSize(conn, writeBufSize),
	}
}

// run owns the connection from handshake to close
func (s *Session) run() {
	defer s.close()

	player, err := s.handshake()
	if err != nil {
		if err != io.EOF {
			log.Printf("session %s: %v", s.conn.RemoteAddr(), err)
		}
		return
	}
	s.playerID = player.ID
	if err := s.writePacket(PlayerIDPacket{PlayerID: player.ID}); err != nil {
		log.Printf("session %s: welcome: %v", player.Name, err)
		return
	}
	s.state.Store(stateActive)
	log.Printf("session: %s joined as %s", player.Name, player.ID)
	s.loop()
}

// handshake reads the first frame, which must be a connect packet, and
// registers the player. Name collisions get a username_taken reply; every
// failure leaves the session unregistered.
func (s *Session) handshake() (*Player, error) {
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	payload, err := ReadFrame(s.br, MaxFrameSize)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("handshake: %w", err)
	}
	pkt, err := DecodePacket(payload)
	if err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	connect, ok := pkt.(ConnectPacket)
	if !ok {
		return nil, &ProtocolError{Reason: "expected connect, got " + pkt.PacketType()}
	}

	player, err := s.world.AddPlayer(connect.Name)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			s.writePacket(UsernameTakenPacket{Message: "username already taken"})
		}
		return nil, fmt.Errorf("handshake %q: %w", connect.Name, err)
	}
	return player, nil
}

// loop polls with a short read deadline so idle and shutdown checks run
// even when the peer is silent. Once a frame starts arriving it gets the
// full frame I/O budget.
func (s *Session) loop() {
	idleAt := time.Now().Add(s.cfg.IdleTimeout)
	for {
		if s.state.Load() == stateClosed {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(ReadPollPeriod))
		if _, err := s.br.Peek(1); err != nil {
			if IsTimeout(err) {
				if time.Now().After(idleAt) {
					s.state.Store(stateDraining)
					log.Printf("session %s: idle, draining", s.playerID)
					return
				}
				continue
			}
			if err != io.EOF {
				log.Printf("session %s: read: %v", s.playerID, err)
			}
			return
		}

		s.conn.SetReadDeadline(time.Now().Add(s.cfg.FrameTimeout))
		payload, err := ReadFrame(s.br, MaxFrameSize)
		if err != nil {
			if err != io.EOF {
				log.Printf("session %s: read: %v", s.playerID, err)
			}
			return
		}
		idleAt = time.Now().Add(s.cfg.IdleTimeout)

		if !s.allowMessage() {
			log.Printf("session %s: message rate exceeded, disconnecting", s.playerID)
			return
		}
		s.dispatch(payload)
	}
}

// allowMessage enforces the per-second inbound message ceiling
func (s *Session) allowMessage() bool {
	now := time.Now()
	if now.After(s.msgResetAt) {
		s.msgCount = 0
		s.msgResetAt = now.Add(time.Second)
	}
	s.msgCount++
	return s.msgCount <= s.cfg.MaxMessagesPerSec
}

// dispatch routes one decoded packet. A packet that fails to decode is
// logged and dropped; the connection stays open.
func (s *Session) dispatch(payload []byte) {
	pkt, err := DecodePacket(payload)
	if err != nil {
		log.Printf("session %s: %v", s.playerID, err)
		return
	}
	switch p := pkt.(type) {
	case MovePacket:
		s.world.MovePlayer(s.playerID, p.DX, p.DY)
	case SkillPacket:
		if !s.world.ActivateSkill(s.playerID, p.SkillName) {
			log.Printf("session %s: unknown skill %q", s.playerID, p.SkillName)
		}
	case GetGameStatePacket:
		if err := s.writePacket(s.world.Snapshot()); err != nil {
			log.Printf("session %s: write: %v", s.playerID, err)
			s.close()
		}
	case PingPacket:
		s.writePacket(PongPacket{})
	default:
		log.Printf("session %s: unexpected %s, ignoring", s.playerID, pkt.PacketType())
	}
}

// writePacket frames and flushes one packet under the write lock
func (s *Session) writePacket(p Packet) error {
	data, err := EncodePacket(p)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.FrameTimeout))
	if err := WriteFrame(s.bw, data); err != nil {
		return err
	}
	return s.bw.Flush()
}

// close deregisters the player and closes the socket, exactly once,
// regardless of which path ended the session
func (s *Session) close() {
	s.closing.Do(func() {
		s.state.Store(stateClosed)
		if s.playerID != "" {
			s.world.RemovePlayer(s.playerID)
			log.Printf("session %s: closed", s.playerID)
		}
		s.conn.Close()
	})
}
