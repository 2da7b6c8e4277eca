// Package main provides a capture tool that records the live UDP scan feed
// into a scan log for later replay.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zenbuns/awr-radar-analyzer/internal/feed"
	"github.com/zenbuns/awr-radar-analyzer/internal/radar"
	"github.com/zenbuns/awr-radar-analyzer/internal/replay"
)

var (
	udpAddr  = flag.String("udp", ":4040", "UDP address to receive scans on")
	outPath  = flag.String("out", "", "Output log directory (default: temp dir)")
	sensorID = flag.String("sensor", "awr-0", "Sensor id recorded in the log header")
	duration = flag.Duration("duration", 0, "Stop after this long (0 records until interrupted)")
)

// recordingSink adapts the Recorder to the feed's delivery interface.
type recordingSink struct {
	rec *replay.Recorder
}

func (s *recordingSink) Deliver(scan *radar.Scan) {
	if err := s.rec.Record(scan); err != nil {
		log.Printf("failed to record scan: %v", err)
	}
}

func main() {
	flag.Parse()

	recorder, err := replay.NewRecorder(*outPath, *sensorID)
	if err != nil {
		log.Fatalf("Failed to create recorder: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	listener := feed.NewUDPListener(feed.UDPListenerConfig{
		Address:     *udpAddr,
		LogInterval: 10 * time.Second,
		Sink:        &recordingSink{rec: recorder},
	})

	log.Printf("Recording scans from %s to %s", *udpAddr, recorder.Path())
	if err := listener.Start(ctx); err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		log.Printf("listener terminated: %v", err)
	}

	if err := recorder.Close(); err != nil {
		log.Fatalf("Failed to finalise log: %v", err)
	}
	log.Printf("Recorded %d scans to %s", recorder.ScanCount(), recorder.Path())
	os.Exit(0)
}
