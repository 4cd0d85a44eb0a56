package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/sudorandom/packet-globe/pkg/collector"
)

var cli struct {
	Listen  string `default:":5000" help:"Address to serve on."`
	Data    string `type:"path" help:"Directory for the packet log. Packets are kept in memory when empty."`
	Metrics bool   `default:"true" negatable:"" help:"Expose Prometheus metrics on /metrics."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("packet-collector"),
		kong.Description("Receives packets from senders and serves them to globe viewers."),
	)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	packets, err := collector.OpenPacketLog(cli.Data)
	if err != nil {
		log.Fatalf("Failed to open packet log: %v", err)
	}
	defer func() {
		if err := packets.Close(); err != nil {
			log.Printf("[COLLECTOR] Error closing packet log: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              cli.Listen,
		Handler:           collector.NewServer(ctx, packets).Routes(cli.Metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[COLLECTOR] Shutdown error: %v", err)
		}
	}()

	log.Printf("[COLLECTOR] Listening on %s (%d packets stored)", cli.Listen, packets.Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
