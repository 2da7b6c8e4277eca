package radar

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenbuns/awr-radar-analyzer/internal/monitoring"
	"github.com/zenbuns/awr-radar-analyzer/internal/timeutil"
)

// CollectionEndReason records why a collection run ended.
type CollectionEndReason string

const (
	EndReasonPlaybackEnded   CollectionEndReason = "playback_ended"
	EndReasonPlaybackStopped CollectionEndReason = "playback_stopped"
	EndReasonUserStop        CollectionEndReason = "user_stop"
	EndReasonDurationElapsed CollectionEndReason = "duration_elapsed"
)

// CollectionEndedEvent is published to subscribers once per run, after the
// store and heatmap have been reset.
type CollectionEndedEvent struct {
	RunID       string              `json:"run_id"`
	Reason      CollectionEndReason `json:"reason"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt time.Time           `json:"completed_at"`
	TotalPoints int                 `json:"total_points"`
}

// CollectionOptions parameterise a collection run.
type CollectionOptions struct {
	// ConfigName labels the sensor configuration in use, for the run record.
	ConfigName string

	// TargetDistance is the expected target range in metres, recorded with
	// the run for later comparison against the measured distribution.
	TargetDistance float64

	// Duration bounds the run; zero means the controller's default. The run
	// still ends earlier on playback completion or an explicit Stop.
	Duration time.Duration

	// PlaybackID binds the run to a playback session. When set, the run ends
	// when that session does, and stopping the run cancels the session.
	PlaybackID string
}

// ExperimentWriter persists the summary of a completed run.
type ExperimentWriter interface {
	Insert(rec *ExperimentRecord) error
}

// ControllerConfig wires a CollectionController.
type ControllerConfig struct {
	Store        *SampleStore
	Heatmap      *Heatmap
	Sink         *IngestionSink
	Playback     *PlaybackManager
	Experiments  ExperimentWriter // optional
	Clock        timeutil.Clock   // nil means real time
	BandInterval float64
	MaxRange     float64

	// DefaultDuration bounds runs that do not specify one. Zero disables the
	// watchdog for such runs.
	DefaultDuration time.Duration
}

// CollectionController gates ingestion around an explicit start/stop
// lifecycle. At most one run is active at a time; every exit path — user
// stop, playback completion, playback cancellation, duration elapsed —
// funnels through the same teardown, so the store and heatmap are always
// empty when no run is active.
type CollectionController struct {
	store       *SampleStore
	heatmap     *Heatmap
	sink        *IngestionSink
	playback    *PlaybackManager
	experiments ExperimentWriter
	clock       timeutil.Clock

	bandInterval    float64
	maxRange        float64
	defaultDuration time.Duration

	mu          sync.Mutex
	session     *collectionSession
	subscribers map[string]func(CollectionEndedEvent)
}

type collectionSession struct {
	runID     string
	opts      CollectionOptions
	startedAt time.Time
	subID     string
	watchdog  timeutil.Timer
	watchStop chan struct{}
}

// NewCollectionController creates a controller over the given store, sink
// and playback manager.
func NewCollectionController(cfg ControllerConfig) *CollectionController {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &CollectionController{
		store:           cfg.Store,
		heatmap:         cfg.Heatmap,
		sink:            cfg.Sink,
		playback:        cfg.Playback,
		experiments:     cfg.Experiments,
		clock:           clock,
		bandInterval:    cfg.BandInterval,
		maxRange:        cfg.MaxRange,
		defaultDuration: cfg.DefaultDuration,
		subscribers:     make(map[string]func(CollectionEndedEvent)),
	}
}

// Start begins a collection run. It fails with ErrAlreadyActive if a run is
// in progress. The store and heatmap are reset before the sink is armed, so
// a run never starts with residue from a previous one.
func (c *CollectionController) Start(opts CollectionOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return "", ErrAlreadyActive
	}

	s := &collectionSession{
		runID:     uuid.New().String(),
		opts:      opts,
		startedAt: c.clock.Now(),
	}

	c.store.Reset()
	if c.heatmap != nil {
		c.heatmap.Reset()
	}

	// Only runs bound to a playback session follow its lifecycle; a live
	// feed run is unaffected by unrelated sessions finishing.
	if c.playback != nil && opts.PlaybackID != "" {
		runID := s.runID
		s.subID = c.playback.SubscribeFunc(func(ev PlaybackEvent) {
			c.OnPlaybackEvent(runID, ev)
		})
	}

	duration := opts.Duration
	if duration <= 0 {
		duration = c.defaultDuration
	}
	if duration > 0 {
		s.watchdog = c.clock.NewTimer(duration)
		s.watchStop = make(chan struct{})
		go c.watchDuration(s.runID, s.watchdog, s.watchStop)
	}

	c.session = s
	c.sink.Arm()

	monitoring.Logf("[collect] run %s started (config=%q target=%.1fm duration=%s playback=%q)",
		s.runID, opts.ConfigName, opts.TargetDistance, duration, opts.PlaybackID)
	return s.runID, nil
}

// Stop ends the active run. Stopping when no run is active is a no-op.
func (c *CollectionController) Stop() {
	c.mu.Lock()
	ev, subs, ok := c.teardownLocked(EndReasonUserStop)
	c.mu.Unlock()
	if !ok {
		return
	}
	for _, fn := range subs {
		fn(ev)
	}
}

// OnPlaybackEvent reacts to lifecycle events from the playback session
// bound to runID. Looped events keep the run going; terminal events end it.
// Events carrying a session id other than the run's bound one are logged
// and ignored.
func (c *CollectionController) OnPlaybackEvent(runID string, ev PlaybackEvent) {
	c.mu.Lock()
	s := c.session
	if s == nil || s.runID != runID {
		c.mu.Unlock()
		monitoring.Debugf("[collect] ignoring %s event for finished run %s", ev.Kind, runID)
		return
	}
	if s.opts.PlaybackID == "" || ev.SessionID != s.opts.PlaybackID {
		c.mu.Unlock()
		monitoring.Logf("[collect] run %s: ignoring %s event from unrelated session %s",
			runID, ev.Kind, ev.SessionID)
		return
	}

	if ev.Kind == PlaybackEventLooped {
		c.mu.Unlock()
		monitoring.Debugf("[collect] run %s: playback looped after %d scans", runID, ev.ScansDelivered)
		return
	}

	reason := EndReasonPlaybackEnded
	if ev.Kind == PlaybackEventStopped {
		reason = EndReasonPlaybackStopped
	}
	endEv, subs, ok := c.teardownLocked(reason)
	c.mu.Unlock()
	if !ok {
		return
	}
	for _, fn := range subs {
		fn(endEv)
	}
}

// watchDuration ends the run when its duration elapses. The runID guard
// means a timer surviving past its run's teardown cannot end a later run.
func (c *CollectionController) watchDuration(runID string, timer timeutil.Timer, stop chan struct{}) {
	select {
	case <-stop:
		return
	case <-timer.C():
	}

	c.mu.Lock()
	if c.session == nil || c.session.runID != runID {
		c.mu.Unlock()
		return
	}
	ev, subs, ok := c.teardownLocked(EndReasonDurationElapsed)
	c.mu.Unlock()
	if !ok {
		return
	}
	monitoring.Logf("[collect] run %s: duration elapsed", runID)
	for _, fn := range subs {
		fn(ev)
	}
}

// teardownLocked is the single exit path for a run. Caller holds c.mu.
// Ordering matters: the sink is disarmed before the store is reset, so no
// in-flight delivery can land a sample after the reset. The event and the
// subscriber snapshot are returned for publication after the mutex is
// released.
func (c *CollectionController) teardownLocked(reason CollectionEndReason) (CollectionEndedEvent, []func(CollectionEndedEvent), bool) {
	s := c.session
	if s == nil {
		return CollectionEndedEvent{}, nil, false
	}
	c.session = nil

	if s.watchdog != nil {
		s.watchdog.Stop()
		close(s.watchStop)
	}
	if s.subID != "" && c.playback != nil {
		c.playback.Unsubscribe(s.subID)
	}

	// Stop ingestion before reading results or clearing state.
	c.sink.Disarm()

	// If stopping the run (rather than the playback ending first), cancel
	// the bound session so it does not keep reading from a disarmed sink.
	if s.opts.PlaybackID != "" && reason != EndReasonPlaybackEnded && reason != EndReasonPlaybackStopped && c.playback != nil {
		if err := c.playback.Cancel(s.opts.PlaybackID); err != nil {
			monitoring.Debugf("[collect] run %s: cancelling playback %s: %v", s.runID, s.opts.PlaybackID, err)
		}
	}

	completedAt := c.clock.Now()
	points := c.store.Points()
	c.persistRun(s, reason, completedAt, points)

	c.store.Reset()
	if c.heatmap != nil {
		c.heatmap.Reset()
	}

	ev := CollectionEndedEvent{
		RunID:       s.runID,
		Reason:      reason,
		StartedAt:   s.startedAt,
		CompletedAt: completedAt,
		TotalPoints: len(points),
	}

	subs := make([]func(CollectionEndedEvent), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}

	monitoring.Logf("[collect] run %s ended (%s): %d points over %s",
		s.runID, reason, len(points), completedAt.Sub(s.startedAt).Round(time.Millisecond))
	return ev, subs, true
}

// persistRun writes the run summary to the experiment store. Persistence is
// best effort: a storage failure is logged and the teardown continues.
func (c *CollectionController) persistRun(s *collectionSession, reason CollectionEndReason, completedAt time.Time, points []Sample) {
	if c.experiments == nil {
		return
	}

	result := AnalyzeSamples(points, c.bandInterval, c.maxRange)
	bands, err := json.Marshal(result.Bands)
	if err != nil {
		monitoring.Logf("[collect] run %s: encoding bands: %v", s.runID, err)
		bands = []byte("[]")
	}

	rec := &ExperimentRecord{
		RunID:          s.runID,
		ConfigName:     s.opts.ConfigName,
		TargetDistance: s.opts.TargetDistance,
		PlaybackID:     s.opts.PlaybackID,
		EndReason:      string(reason),
		StartedAt:      s.startedAt,
		CompletedAt:    completedAt,
		TotalPoints:    result.TotalPoints,
		MeanIntensity:  result.MeanIntensity,
		DistanceBands:  bands,
	}
	if err := c.experiments.Insert(rec); err != nil {
		monitoring.Logf("[collect] run %s: persisting record: %v", s.runID, err)
	}
}

// Active reports whether a collection run is in progress.
func (c *CollectionController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// CurrentRunID returns the active run's id, or "" when idle.
func (c *CollectionController) CurrentRunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.runID
}

// StartedAt returns the active run's start time, or the zero time when idle.
func (c *CollectionController) StartedAt() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return time.Time{}, false
	}
	return c.session.startedAt, true
}

// SubscribeFunc registers a callback invoked once per completed run.
func (c *CollectionController) SubscribeFunc(fn func(CollectionEndedEvent)) string {
	id := uuid.New().String()
	c.mu.Lock()
	c.subscribers[id] = fn
	c.mu.Unlock()
	return id
}

// Unsubscribe removes a completed-run callback.
func (c *CollectionController) Unsubscribe(id string) {
	c.mu.Lock()
	delete(c.subscribers, id)
	c.mu.Unlock()
}
