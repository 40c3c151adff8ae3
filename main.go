package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
)

func main() {
	addr := flag.String("addr", ":7777", "TCP game listen address")
	httpAddr := flag.String("http", ":8080", "HTTP gateway listen address (empty to disable)")
	journalPath := flag.String("journal", "", "SQLite event journal path (empty to disable)")
	flag.Parse()

	cfg := DefaultConfig()

	var journal *Journal
	var rec Recorder
	if *journalPath != "" {
		j, err := OpenJournal(*journalPath)
		if err != nil {
			log.Fatalf("open journal: %v", err)
		}
		journal = j
		rec = j
		defer journal.Stop()
		log.Printf("journaling events to %s", *journalPath)
	}

	world := NewWorld(cfg, rec)
	gate := NewGate(cfg)

	server := NewServer(cfg, world, gate)
	if err := server.Listen(*addr); err != nil {
		log.Fatalf("listen on %s: %v", *addr, err)
	}

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return world.Run(ctx) })
	g.Go(func() error { return server.Serve(ctx) })

	if *httpAddr != "" {
		gateway := NewGateway(cfg, world, gate, journal, server.Addr().String())
		httpServer := &http.Server{Addr: *httpAddr, Handler: gateway.Routes()}

		g.Go(func() error { return gateway.Run(ctx) })
		g.Go(func() error {
			if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return httpServer.Close()
		})
		log.Printf("gateway listening on %s", *httpAddr)
	}

	log.Printf("game server listening on %s", server.Addr())

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Println("shut down cleanly")
}
