package radar

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenbuns/awr-radar-analyzer/internal/monitoring"
	"github.com/zenbuns/awr-radar-analyzer/internal/timeutil"
)

// PlaybackState is the lifecycle state of a playback session.
type PlaybackState string

const (
	PlaybackIdle     PlaybackState = "idle"
	PlaybackStarting PlaybackState = "starting"
	PlaybackPlaying  PlaybackState = "playing"
	PlaybackLooping  PlaybackState = "looping"
	PlaybackEnding   PlaybackState = "ending"
	PlaybackEnded    PlaybackState = "ended"
	PlaybackStopped  PlaybackState = "stopped"
)

// Terminal reports whether the state is final for the session.
func (s PlaybackState) Terminal() bool {
	return s == PlaybackEnded || s == PlaybackStopped
}

// PlaybackEventKind classifies lifecycle events. A session emits any number
// of Looped events but exactly one terminal event: Ended on natural
// completion, or Stopped on cancellation — never both.
type PlaybackEventKind string

const (
	PlaybackEventLooped  PlaybackEventKind = "looped"
	PlaybackEventEnded   PlaybackEventKind = "ended"
	PlaybackEventStopped PlaybackEventKind = "stopped"
)

// PlaybackEvent is delivered to subscribers on session lifecycle
// transitions. Events travel on a separate path from scan data and are
// published only after every scan delivered before the transition has been
// appended.
type PlaybackEvent struct {
	SessionID      string            `json:"session_id"`
	Kind           PlaybackEventKind `json:"kind"`
	At             time.Time         `json:"at"`
	ScansDelivered int               `json:"scans_delivered"`
}

// ScanSource is the opaque handle onto a replay medium. Next returns io.EOF
// at end of stream; Rewind resets the delivery cursor to the beginning.
// Implementations live outside the core (see internal/replay).
type ScanSource interface {
	Next() (*Scan, error)
	Rewind() error
	Close() error
}

// PlaybackManager owns playback sessions keyed by id and fans lifecycle
// events out to subscribers. Scan delivery goes straight to the configured
// sink from each session's delivery goroutine.
type PlaybackManager struct {
	sink  ScanSink
	clock timeutil.Clock

	mu          sync.Mutex
	sessions    map[string]*PlaybackSession
	subscribers map[string]func(PlaybackEvent)
}

// NewPlaybackManager creates a manager delivering scans to sink. A nil
// clock defaults to the real one.
func NewPlaybackManager(sink ScanSink, clock timeutil.Clock) *PlaybackManager {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &PlaybackManager{
		sink:        sink,
		clock:       clock,
		sessions:    make(map[string]*PlaybackSession),
		subscribers: make(map[string]func(PlaybackEvent)),
	}
}

// Start opens the source and begins a playback session, returning its id.
// If the source cannot be opened the error wraps ErrSourceUnavailable and
// no delivery goroutine is started.
func (m *PlaybackManager) Start(source ScanSource, loop bool) (string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &PlaybackSession{
		id:     uuid.New().String(),
		source: source,
		loop:   loop,
		mgr:    m,
		ctx:    ctx,
		cancel: cancel,
		state:  PlaybackStarting,
		done:   make(chan struct{}),
	}

	// Open the delivery cursor before the loop starts so open failures are
	// surfaced synchronously to the caller.
	if err := source.Rewind(); err != nil {
		s.mu.Lock()
		s.state = PlaybackStopped
		s.mu.Unlock()
		cancel()
		close(s.done)
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	monitoring.Logf("[playback] session %s starting (loop=%v)", s.id, loop)
	go s.run()
	return s.id, nil
}

// Cancel requests prompt cancellation of the session's delivery loop. It
// only signals; it never waits, so it is safe to call from a lifecycle
// callback. Cancelling a finished session is a no-op.
func (m *PlaybackManager) Cancel(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.cancel()
	return nil
}

// State returns the session's current lifecycle state.
func (m *PlaybackManager) State(id string) (PlaybackState, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return PlaybackIdle, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// Wait blocks until the session's delivery loop has exited and its terminal
// event has been published. Intended for tests and the replay CLI.
func (m *PlaybackManager) Wait(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	<-s.done
	return nil
}

// SubscribeFunc registers a lifecycle callback and returns its subscription
// id. Callbacks run on the session's delivery goroutine after all scans
// delivered before the transition have been appended; they must not block.
func (m *PlaybackManager) SubscribeFunc(fn func(PlaybackEvent)) string {
	id := uuid.New().String()
	m.mu.Lock()
	m.subscribers[id] = fn
	m.mu.Unlock()
	return id
}

// Unsubscribe removes a lifecycle callback.
func (m *PlaybackManager) Unsubscribe(id string) {
	m.mu.Lock()
	delete(m.subscribers, id)
	m.mu.Unlock()
}

// publish fans one event out to the subscribers registered at publish time.
// The manager mutex is not held across callbacks.
func (m *PlaybackManager) publish(ev PlaybackEvent) {
	m.mu.Lock()
	fns := make([]func(PlaybackEvent), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// PlaybackSession replays one recorded capture through the sink at the
// source's native cadence. Created by PlaybackManager.Start; external code
// refers to it only by id.
type PlaybackSession struct {
	id     string
	source ScanSource
	loop   bool
	mgr    *PlaybackManager
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu             sync.Mutex
	state          PlaybackState
	scansDelivered int
}

// run is the delivery loop. It is the only place in the core that
// legitimately blocks: pacing waits between scans, with the cancellation
// context checked at every wait and immediately before every delivery.
func (s *PlaybackSession) run() {
	defer close(s.done)
	defer func() {
		if err := s.source.Close(); err != nil {
			monitoring.Logf("[playback] session %s: closing source: %v", s.id, err)
		}
	}()

	var lastScanTime time.Time
	var lastWallTime time.Time

	for {
		if s.ctx.Err() != nil {
			s.finish(PlaybackEventStopped)
			return
		}

		scan, err := s.source.Next()
		if err == io.EOF {
			if s.loop {
				if rerr := s.source.Rewind(); rerr != nil {
					monitoring.Logf("[playback] session %s: rewind failed: %v", s.id, rerr)
					s.finish(PlaybackEventStopped)
					return
				}
				s.setState(PlaybackLooping)
				s.mgr.publish(s.event(PlaybackEventLooped))
				// Fresh delivery cursor: pacing restarts on the next scan.
				lastScanTime = time.Time{}
				lastWallTime = time.Time{}
				continue
			}
			s.setState(PlaybackEnding)
			s.finish(PlaybackEventEnded)
			return
		}
		if err != nil {
			monitoring.Logf("[playback] session %s: read error: %v", s.id, err)
			s.finish(PlaybackEventStopped)
			return
		}

		// Pace to the recording's native cadence, remaining responsive to
		// cancellation for the whole wait.
		if !lastScanTime.IsZero() && scan.Timestamp.After(lastScanTime) {
			delta := scan.Timestamp.Sub(lastScanTime)
			if wait := delta - s.mgr.clock.Since(lastWallTime); wait > 0 {
				timer := s.mgr.clock.NewTimer(wait)
				select {
				case <-s.ctx.Done():
					timer.Stop()
					s.finish(PlaybackEventStopped)
					return
				case <-timer.C():
				}
			}
		}

		if s.ctx.Err() != nil {
			s.finish(PlaybackEventStopped)
			return
		}

		s.setState(PlaybackPlaying)
		s.mgr.sink.Deliver(scan)
		s.mu.Lock()
		s.scansDelivered++
		s.mu.Unlock()

		lastScanTime = scan.Timestamp
		lastWallTime = s.mgr.clock.Now()
	}
}

func (s *PlaybackSession) setState(st PlaybackState) {
	s.mu.Lock()
	if !s.state.Terminal() {
		s.state = st
	}
	s.mu.Unlock()
}

// finish claims the terminal transition. Exactly one caller wins; the event
// is published once, after the final append.
func (s *PlaybackSession) finish(kind PlaybackEventKind) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	if kind == PlaybackEventEnded {
		s.state = PlaybackEnded
	} else {
		s.state = PlaybackStopped
	}
	s.mu.Unlock()

	s.cancel()
	monitoring.Logf("[playback] session %s %s after %d scans", s.id, kind, s.delivered())
	s.mgr.publish(s.event(kind))
}

func (s *PlaybackSession) event(kind PlaybackEventKind) PlaybackEvent {
	return PlaybackEvent{
		SessionID:      s.id,
		Kind:           kind,
		At:             s.mgr.clock.Now(),
		ScansDelivered: s.delivered(),
	}
}

func (s *PlaybackSession) delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scansDelivered
}
