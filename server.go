package main

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"
)

// Server owns the TCP listener and one session goroutine per client
type Server struct {
	cfg   Config
	world *World
	gate  *Gate

	ln net.Listener

	mu       sync.Mutex
	sessions map[*Session]bool
	wg       sync.WaitGroup
}

// NewServer creates a server around an admission gate and a world
func NewServer(cfg Config, world *World, gate *Gate) *Server {
	return &Server{
		cfg:      cfg,
		world:    world,
		gate:     gate,
		sessions: make(map[*Session]bool),
	}
}

// Listen binds the TCP address; Serve accepts on it
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	log.Printf("server: listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound listen address, nil before Listen
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections until ctx is canceled, then closes every live
// session and waits for their goroutines to finish.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.shutdown()
				return nil
			}
			log.Printf("server: accept: %v", err)
			continue
		}
		s.admit(conn)
	}
}

// admit runs the gate checks and spawns the session goroutine. A rate
// limited IP is closed without a reply; a full server says so first.
func (s *Server) admit(conn net.Conn) {
	ip := remoteIP(conn)
	switch s.gate.Admit(ip, time.Now()) {
	case GateRateLimited:
		log.Printf("server: rate limited %s", ip)
		conn.Close()
		return
	case GateFull:
		log.Printf("server: full, rejecting %s", ip)
		sendPacket(conn, s.cfg.FrameTimeout, ServerFullPacket{Message: "server full"})
		conn.Close()
		return
	}

	sess := newSession(s.cfg, s.world, conn)
	s.track(sess)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.gate.Release()
		defer s.untrack(sess)
		sess.run()
	}()
}

func (s *Server) track(sess *Session) {
	s.mu.Lock()
	s.sessions[sess] = true
	s.mu.Unlock()
}

func (s *Server) untrack(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
}

// shutdown force-closes live sessions and waits them out
func (s *Server) shutdown() {
	s.mu.Lock()
	open := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.close()
	}
	s.wg.Wait()
	log.Printf("server: stopped")
}

// remoteIP returns the bare host portion of the peer address
func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

// sendPacket writes one framed packet on a bare connection, best effort
func sendPacket(conn net.Conn, timeout time.Duration, p Packet) {
	data, err := EncodePacket(p)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(timeout))
	WriteFrame(conn, data)
}
