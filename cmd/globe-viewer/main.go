package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	_ "github.com/silbinarywolf/preferdiscretegpu"

	"github.com/sudorandom/packet-globe/pkg/config"
	"github.com/sudorandom/packet-globe/pkg/geoip"
	"github.com/sudorandom/packet-globe/pkg/globe"
	"github.com/sudorandom/packet-globe/pkg/metrics"
	"github.com/sudorandom/packet-globe/pkg/sources"
	"github.com/sudorandom/packet-globe/pkg/utils"
	"github.com/sudorandom/packet-globe/pkg/viewer"
)

var (
	configFlag   = flag.String("config", "", "Path to a YAML config file")
	sourceFlag   = flag.String("source", "", "Collector URL (overrides source.url)")
	kindFlag     = flag.String("source-kind", "", "http to poll /data, stream to subscribe to /stream (overrides source.kind)")
	renderWidth  = flag.Int("width", 0, "Internal rendering width (overrides render.width)")
	renderHeight = flag.Int("height", 0, "Internal rendering height (overrides render.height)")
	windowWidth  = flag.Int("window-width", 1280, "Initial window width")
	windowHeight = flag.Int("window-height", 720, "Initial window height")
	tpsFlag      = flag.Int("tps", 60, "Ticks per second (engine updates)")
	metricsAddr  = flag.String("metrics-addr", "", "Serve /metrics and /healthz on this address (overrides metrics.addr)")
	geoipFlag    = flag.String("geoip", "", "MaxMind-format database for tooltip countries (overrides geoip.path)")
	captureDir   = flag.String("capture-dir", "captures", "Directory for screenshots taken with the P key")
)

func main() {
	flag.Parse()
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg := config.Default()
	if *configFlag != "" {
		var err error
		if cfg, err = config.Load(*configFlag); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var src globe.Source
	switch cfg.Source.Kind {
	case config.SourceStream:
		stream := sources.NewStream(cfg.Source.URL)
		go stream.Run(ctx)
		src = stream
	default:
		src = sources.NewHTTPSource(cfg.Source.URL, cfg.Source.Timeout)
	}
	log.Printf("Reading packets from %s (%s)", cfg.Source.URL, cfg.Source.Kind)

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil {
				log.Printf("[METRICS] Server stopped: %v", err)
			}
		}()
	}

	var resolver *geoip.Resolver
	if cfg.GeoIP.Path != "" {
		r, err := geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			log.Printf("[GEOIP] Country lookups disabled: %v", err)
		} else {
			resolver = r
			defer resolver.Close()
		}
	}

	engine := viewer.NewEngine(viewer.Options{
		Width:      cfg.Render.Width,
		Height:     cfg.Render.Height,
		AutoRotate: cfg.Render.AutoRotate,
		World:      loadWorld(ctx, cfg),
		GeoIP:      resolver,
		CaptureDir: *captureDir,
	})
	sched := globe.NewScheduler(cfg.Scheduler(), src, engine.Collaborators())
	defer sched.Close()
	engine.Bind(sched)

	ebiten.SetTPS(*tpsFlag)
	ebiten.SetWindowSize(*windowWidth, *windowHeight)
	ebiten.SetWindowTitle("Packet Globe")
	if err := ebiten.RunGame(engine); err != nil {
		log.Fatal(err)
	}
}

func applyFlags(cfg *config.Config) {
	if *kindFlag != "" {
		cfg.Source.Kind = *kindFlag
	}
	if *sourceFlag != "" {
		cfg.Source.URL = *sourceFlag
	}
	if *renderWidth > 0 {
		cfg.Render.Width = *renderWidth
	}
	if *renderHeight > 0 {
		cfg.Render.Height = *renderHeight
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *geoipFlag != "" {
		cfg.GeoIP.Path = *geoipFlag
	}
}

// loadWorld fetches the country outlines. The globe still works without them.
func loadWorld(ctx context.Context, cfg *config.Config) [][]globe.Vec3 {
	rc, err := utils.NewCache("").Open(ctx, cfg.World.GeoJSONURL, *cfg.World.Cache, "[WORLD]")
	if err != nil {
		log.Printf("[WORLD] Outline unavailable: %v", err)
		return nil
	}
	defer rc.Close()
	rings, err := viewer.LoadWorld(rc)
	if err != nil {
		log.Printf("[WORLD] Outline unavailable: %v", err)
		return nil
	}
	log.Printf("[WORLD] Loaded %d outline rings", len(rings))
	return rings
}
