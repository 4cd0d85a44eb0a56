package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/sudorandom/packet-globe/pkg/sources"
	"github.com/sudorandom/packet-globe/pkg/utils"
)

var cli struct {
	URL          string        `default:"http://localhost:5000/receive" help:"Collector receive endpoint."`
	CSV          string        `default:"ip_addresses.csv" help:"Capture file to replay, a local path or an http(s) URL."`
	Cache        bool          `help:"Keep a downloaded capture file under data/cache."`
	StartupDelay time.Duration `default:"5s" help:"Wait before the first packet so the collector can come up."`
	Speed        float64       `default:"1" help:"Replay speed multiplier."`
	Timeout      time.Duration `default:"10s" help:"Per-request timeout."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("packet-sender"),
		kong.Description("Replays a packet capture into a collector in timestamp order."),
	)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc, err := openCapture(ctx, cli.CSV)
	if err != nil {
		log.Fatalf("Failed to open capture: %v", err)
	}
	packets, err := sources.ReadCSV(rc)
	_ = rc.Close()
	if err != nil {
		log.Fatalf("Failed to read capture %s: %v", cli.CSV, err)
	}
	log.Printf("[SENDER] Loaded %d packets from %s", len(packets), cli.CSV)

	if cli.StartupDelay > 0 {
		log.Printf("[SENDER] Waiting %v for the collector", cli.StartupDelay)
		select {
		case <-time.After(cli.StartupDelay):
		case <-ctx.Done():
			return
		}
	}

	sender := &sources.Sender{URL: cli.URL, Client: &http.Client{Timeout: cli.Timeout}, Speed: cli.Speed}
	sent, err := sender.Replay(ctx, packets)
	if err != nil {
		log.Printf("[SENDER] Stopped after %d packets: %v", sent, err)
		return
	}
	log.Printf("[SENDER] Done: %d of %d packets accepted", sent, len(packets))
}

func openCapture(ctx context.Context, location string) (io.ReadCloser, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return utils.NewCache("").Open(ctx, location, cli.Cache, "[CAPTURE]")
	}
	return os.Open(location)
}
