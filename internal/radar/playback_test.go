package radar

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource replays a fixed slice of scans. Zero scan timestamps keep the
// pacing logic out of the way so tests run at full speed.
type stubSource struct {
	mu       sync.Mutex
	scans    []*Scan
	pos      int
	rewinds  int
	rewindFn func() error
	closed   bool
}

func newStubSource(n int) *stubSource {
	scans := make([]*Scan, n)
	for i := range scans {
		scans[i] = &Scan{
			SensorID: "awr-test",
			Samples:  []Sample{{X: float64(i), Y: 5, Intensity: 10}},
		}
	}
	return &stubSource{scans: scans}
}

func (s *stubSource) Next() (*Scan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.scans) {
		return nil, io.EOF
	}
	scan := s.scans[s.pos]
	s.pos++
	return scan, nil
}

func (s *stubSource) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rewindFn != nil {
		return s.rewindFn()
	}
	s.rewinds++
	s.pos = 0
	return nil
}

func (s *stubSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// eventRecorder collects lifecycle events from a subscription.
type eventRecorder struct {
	mu     sync.Mutex
	events []PlaybackEvent
}

func (r *eventRecorder) record(ev PlaybackEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) all() []PlaybackEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PlaybackEvent(nil), r.events...)
}

func (r *eventRecorder) countKind(kind PlaybackEventKind) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func newTestPipeline() (*SampleStore, *IngestionSink, *PlaybackManager) {
	store := NewSampleStore()
	sink := NewIngestionSink(SinkConfig{Store: store})
	sink.Arm()
	mgr := NewPlaybackManager(sink, nil)
	return store, sink, mgr
}

func TestPlaybackRunsToCompletion(t *testing.T) {
	store, _, mgr := newTestPipeline()
	rec := &eventRecorder{}
	mgr.SubscribeFunc(rec.record)

	source := newStubSource(5)
	id, err := mgr.Start(source, false)
	require.NoError(t, err)
	require.NoError(t, mgr.Wait(id))

	count, _ := store.Snapshot()
	assert.Equal(t, 5, count, "every scan should be appended exactly once")

	events := rec.all()
	require.Len(t, events, 1, "a non-looping session emits exactly one event")
	assert.Equal(t, PlaybackEventEnded, events[0].Kind)
	assert.Equal(t, 5, events[0].ScansDelivered)
	assert.Equal(t, id, events[0].SessionID)

	state, err := mgr.State(id)
	require.NoError(t, err)
	assert.Equal(t, PlaybackEnded, state)
	assert.True(t, source.closed, "source should be closed when the loop exits")
}

func TestPlaybackLoopTwoPassesThenCancel(t *testing.T) {
	store, _, mgr := newTestPipeline()

	rec := &eventRecorder{}
	idCh := make(chan string, 1)
	mgr.SubscribeFunc(func(ev PlaybackEvent) {
		rec.record(ev)
		// Cancel from the callback once the second pass has finished. The
		// callback runs on the delivery goroutine, so Cancel must not
		// block.
		if ev.Kind == PlaybackEventLooped && rec.countKind(PlaybackEventLooped) == 2 {
			mgr.Cancel(<-idCh)
		}
	})

	source := newStubSource(5)
	id, err := mgr.Start(source, true)
	require.NoError(t, err)
	idCh <- id

	require.NoError(t, mgr.Wait(id))

	count, _ := store.Snapshot()
	assert.Equal(t, 10, count, "two full passes appended")

	assert.Equal(t, 2, rec.countKind(PlaybackEventLooped))
	assert.Equal(t, 1, rec.countKind(PlaybackEventStopped), "cancellation is Stopped, not Ended")
	assert.Equal(t, 0, rec.countKind(PlaybackEventEnded))

	state, err := mgr.State(id)
	require.NoError(t, err)
	assert.Equal(t, PlaybackStopped, state)
}

func TestPlaybackCancelMidStream(t *testing.T) {
	store, _, mgr := newTestPipeline()
	rec := &eventRecorder{}
	mgr.SubscribeFunc(rec.record)

	// Cancel from a delivery observer after the third scan: the sink wraps
	// the real one and fires the cancellation synchronously on the delivery
	// goroutine, so no fourth append can slip in.
	idCh := make(chan string, 1)
	cancelAfter := 3
	delivered := 0
	wrapped := mgr.sink
	mgr.sink = scanSinkFunc(func(scan *Scan) {
		wrapped.Deliver(scan)
		delivered++
		if delivered == cancelAfter {
			mgr.Cancel(<-idCh)
		}
	})

	source := newStubSource(10)
	id, err := mgr.Start(source, false)
	require.NoError(t, err)
	idCh <- id

	require.NoError(t, mgr.Wait(id))

	count, _ := store.Snapshot()
	assert.Equal(t, 3, count, "no appends after cancellation")

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, PlaybackEventStopped, events[0].Kind)
	assert.Equal(t, 3, events[0].ScansDelivered)
}

type scanSinkFunc func(*Scan)

func (f scanSinkFunc) Deliver(scan *Scan) { f(scan) }

func TestPlaybackSourceUnavailable(t *testing.T) {
	_, _, mgr := newTestPipeline()
	rec := &eventRecorder{}
	mgr.SubscribeFunc(rec.record)

	source := newStubSource(5)
	source.rewindFn = func() error { return errors.New("no such log") }

	_, err := mgr.Start(source, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)

	// No goroutine started, so no events can arrive.
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.all())
}

func TestPlaybackCancelUnknownSession(t *testing.T) {
	_, _, mgr := newTestPipeline()
	err := mgr.Cancel("no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPlaybackPacingHonoursCancellation(t *testing.T) {
	store, _, mgr := newTestPipeline()

	// Two scans a full minute apart: without cancellation the session
	// would sit in the pacing wait for the whole gap.
	base := time.Now()
	source := &stubSource{scans: []*Scan{
		{Timestamp: base, Samples: []Sample{{Y: 5, Intensity: 1}}},
		{Timestamp: base.Add(time.Minute), Samples: []Sample{{Y: 6, Intensity: 1}}},
	}}

	id, err := mgr.Start(source, false)
	require.NoError(t, err)

	// Let the first scan through, then cancel into the pacing wait.
	require.Eventually(t, func() bool {
		count, _ := store.Snapshot()
		return count == 1
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, mgr.Cancel(id))

	done := make(chan struct{})
	go func() {
		mgr.Wait(id)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not exit the pacing wait on cancellation")
	}

	count, _ := store.Snapshot()
	assert.Equal(t, 1, count)

	state, err := mgr.State(id)
	require.NoError(t, err)
	assert.Equal(t, PlaybackStopped, state)
}
