// Package feed receives live radar scans over UDP and hands them to the
// ingestion sink. Each datagram carries one JSON-encoded scan.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zenbuns/awr-radar-analyzer/internal/monitoring"
	"github.com/zenbuns/awr-radar-analyzer/internal/radar"
)

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Sink        radar.ScanSink
}

// UDPListener receives scan datagrams and delivers them to the sink. The
// sink decides whether a scan is kept: outside a collection run deliveries
// are discarded there, so the listener runs unconditionally.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	sink        radar.ScanSink

	mu   sync.Mutex
	conn *net.UDPConn

	packets uint64
	scans   uint64
	badPkts uint64
}

// NewUDPListener creates a listener with the provided configuration.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	rcvBuf := config.RcvBuf
	if rcvBuf == 0 {
		rcvBuf = 1 << 20
	}
	return &UDPListener{
		address:     config.Address,
		rcvBuf:      rcvBuf,
		logInterval: logInterval,
		sink:        config.Sink,
	}
}

// Start listens for scan datagrams until ctx is cancelled.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen on UDP address: %w", err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	defer conn.Close()

	if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
		monitoring.Logf("[feed] failed to set receive buffer to %d: %v", l.rcvBuf, err)
	}

	monitoring.Logf("[feed] UDP listener started on %s", l.address)
	go l.startStatsLogging(ctx)

	buffer := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("[feed] UDP listener stopping")
			return ctx.Err()
		default:
			// Read deadline keeps the loop responsive to cancellation.
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, raddr, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				monitoring.Logf("[feed] UDP read error: %v", err)
				continue
			}

			if err := l.handlePacket(buffer[:n]); err != nil {
				atomic.AddUint64(&l.badPkts, 1)
				monitoring.Logf("[feed] bad packet from %v: %v", raddr, err)
			}
		}
	}
}

func (l *UDPListener) handlePacket(packet []byte) error {
	atomic.AddUint64(&l.packets, 1)

	var scan radar.Scan
	if err := json.Unmarshal(packet, &scan); err != nil {
		return fmt.Errorf("decode scan: %w", err)
	}
	if scan.Timestamp.IsZero() {
		scan.Timestamp = time.Now()
	}

	l.sink.Deliver(&scan)
	atomic.AddUint64(&l.scans, 1)
	return nil
}

func (l *UDPListener) startStatsLogging(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			monitoring.Logf("[feed] packets=%d scans=%d bad=%d",
				atomic.LoadUint64(&l.packets),
				atomic.LoadUint64(&l.scans),
				atomic.LoadUint64(&l.badPkts))
		}
	}
}

// LocalAddr returns the bound socket address, or nil before Start has
// opened it. Useful when listening on an ephemeral port.
func (l *UDPListener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Close closes the UDP socket.
func (l *UDPListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
