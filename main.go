package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/zenbuns/awr-radar-analyzer/internal/api"
	"github.com/zenbuns/awr-radar-analyzer/internal/config"
	"github.com/zenbuns/awr-radar-analyzer/internal/db"
	"github.com/zenbuns/awr-radar-analyzer/internal/feed"
	"github.com/zenbuns/awr-radar-analyzer/internal/monitoring"
	"github.com/zenbuns/awr-radar-analyzer/internal/radar"
	"github.com/zenbuns/awr-radar-analyzer/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address for the HTTP API")
	dbFile     = flag.String("db", "analyzer_data.db", "Path to the sqlite database")
	udpAddr    = flag.String("udp", "", "UDP address for the live scan feed (disabled when empty)")
	paramsFile = flag.String("params", "", "Path to a JSON parameters file")
	logDir     = flag.String("logs", "", "Restrict playback requests to scan logs under this directory")
	verbose    = flag.Bool("verbose", false, "Enable per-scan debug logging")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("awr-radar-analyzer %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)
	monitoring.SetVerbose(*verbose)

	params := config.EmptyParams()
	if *paramsFile != "" {
		var err error
		params, err = config.LoadParams(*paramsFile)
		if err != nil {
			log.Fatalf("Failed to load parameters: %v", err)
		}
	}

	database, err := db.Open(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	if err := database.MigrateUp(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	store := radar.NewSampleStore()
	heatmap := radar.NewHeatmap(params.GetMaxRange(), params.GetHeatmapResolution(), params.GetHeatmapDecay())
	sink := radar.NewIngestionSink(radar.SinkConfig{
		Store:   store,
		Heatmap: heatmap,
		ROI:     params.GetSamplingCircles(),
	})
	playback := radar.NewPlaybackManager(sink, nil)
	experiments := radar.NewExperimentStore(database.DB)
	controller := radar.NewCollectionController(radar.ControllerConfig{
		Store:           store,
		Heatmap:         heatmap,
		Sink:            sink,
		Playback:        playback,
		Experiments:     experiments,
		BandInterval:    params.GetBandInterval(),
		MaxRange:        params.GetMaxRange(),
		DefaultDuration: params.GetCollectionDuration(),
	})
	progress := radar.NewProgressReader(store, controller, nil)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Live feed routine, when configured. The sink discards deliveries
	// outside a collection run, so the listener runs for the process
	// lifetime.
	if *udpAddr != "" {
		listener := feed.NewUDPListener(feed.UDPListenerConfig{
			Address: *udpAddr,
			Sink:    sink,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && err != context.Canceled {
				log.Printf("UDP feed terminated: %v", err)
			}
		}()
	}

	// HTTP server routine.
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		apiServer := api.NewServer(controller, playback, progress, heatmap, experiments)
		apiServer.SetLogDir(*logDir)
		mux.Handle("/api/", apiServer.ServeMux())

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("HTTP API listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	<-ctx.Done()

	// Ensure any active run is torn down before the process exits so the
	// run record is persisted.
	controller.Stop()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
