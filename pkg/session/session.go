// Package session runs the single event loop that owns a board's canonical
// issue table. Full loads, pushed upserts, removals and local edits are
// queued, applied strictly in delivery order, and published as frames: an
// immutable snapshot plus the fields that should pulse.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vanderheijden86/beadsync/pkg/metrics"
	"github.com/vanderheijden86/beadsync/pkg/model"
	"github.com/vanderheijden86/beadsync/pkg/ordering"
	"github.com/vanderheijden86/beadsync/pkg/pulse"
	"github.com/vanderheijden86/beadsync/pkg/reconcile"
)

var (
	ErrQueueFull      = errors.New("session: event queue full")
	ErrClosed         = errors.New("session: closed")
	ErrAlreadyRunning = errors.New("session: already running")
)

// DefaultQueueSize bounds the number of events waiting for the loop.
const DefaultQueueSize = 64

// CloseMode says what happens to queued events on shutdown.
type CloseMode int

const (
	// DrainPending applies every queued event and emits a final frame.
	DrainPending CloseMode = iota
	// DiscardPending drops queued events.
	DiscardPending
)

func (m CloseMode) String() string {
	if m == DiscardPending {
		return "discard"
	}
	return "drain"
}

// Frame is what the rendering layer consumes.
type Frame struct {
	Snapshot *reconcile.Snapshot
	Pulses   map[string]pulse.Fields // issue id -> fields that changed since the previous frame
	Version  uint64
	Result   reconcile.Result // accumulated over the events folded into this frame
	Events   int
	Err      error
}

// Pulse returns the pulsing fields of an issue.
func (f *Frame) Pulse(id string) pulse.Fields {
	if f == nil {
		return 0
	}
	return f.Pulses[id]
}

// Stats reports loop health.
type Stats struct {
	Processed     uint64
	Coalesced     uint64
	Frames        uint64
	DroppedFrames uint64
	Discarded     uint64
	LastResult    reconcile.Result
	LastEventAt   time.Time
}

// Config configures a Session.
type Config struct {
	Board       model.BoardConfig
	Preset      ordering.Preset
	QueueSize   int // default: 64
	FrameBuffer int // default: 1
	Logger      logrus.FieldLogger
}

// Session is the event loop. Submit and TrySubmit are safe for concurrent
// use; everything else about the table is confined to Run.
type Session struct {
	rec     *reconcile.Reconciler
	tracker *pulse.Tracker[string]
	log     logrus.FieldLogger

	queue   chan Event
	frames  chan *Frame
	closing chan struct{}
	done    chan struct{}

	// submitMu orders enqueue registration against Close; inflight lets
	// shutdown wait until no submitter can still reach the queue.
	submitMu  sync.Mutex
	inflight  sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
	mode      atomic.Int32
	running   atomic.Bool

	current atomic.Pointer[Frame]

	statsMu sync.Mutex
	stats   Stats
}

// New creates a session. Nothing is processed until Run.
func New(cfg Config) *Session {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.FrameBuffer <= 0 {
		cfg.FrameBuffer = 1
	}
	if len(cfg.Board.Statuses) == 0 {
		cfg.Board = model.DefaultBoardConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Session{
		rec:     reconcile.New(cfg.Board, cfg.Preset),
		tracker: pulse.NewTracker[string](),
		log:     logger.WithField("component", "session"),
		queue:   make(chan Event, cfg.QueueSize),
		frames:  make(chan *Frame, cfg.FrameBuffer),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *Session) logEvent(level logrus.Level, event string, fields logrus.Fields) {
	s.log.WithField("event", event).WithFields(fields).Log(level, event)
}

// Submit queues ev, blocking while the queue is full until there is room, ctx
// is done, or the session closes.
func (s *Session) Submit(ctx context.Context, ev Event) error {
	if ev == nil {
		return errors.New("session: nil event")
	}
	if !s.enter() {
		return ErrClosed
	}
	defer s.inflight.Done()
	select {
	case s.queue <- ev:
		return nil
	case <-s.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues ev without blocking.
func (s *Session) TrySubmit(ev Event) error {
	if ev == nil {
		return errors.New("session: nil event")
	}
	if !s.enter() {
		return ErrClosed
	}
	defer s.inflight.Done()
	select {
	case s.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// enter registers a submitter unless the session is closed. An event queued
// by a registered submitter is seen by shutdown.
func (s *Session) enter() bool {
	s.submitMu.Lock()
	defer s.submitMu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.inflight.Add(1)
	return true
}

// Close signals shutdown. Run applies or drops the queued events according to
// mode, then returns. Later Submit calls fail with ErrClosed. Close is
// idempotent; the first mode wins.
func (s *Session) Close(mode CloseMode) {
	s.closeOnce.Do(func() {
		s.submitMu.Lock()
		s.mode.Store(int32(mode))
		s.closed.Store(true)
		close(s.closing)
		s.submitMu.Unlock()
		s.logEvent(logrus.InfoLevel, "session_close", logrus.Fields{"mode": mode.String()})
	})
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Frames delivers frames in order. When the consumer lags, older undelivered
// frames are dropped so the newest wins. The channel is closed when Run
// returns.
func (s *Session) Frames() <-chan *Frame {
	return s.frames
}

// Current returns the most recent frame, or nil before the first one.
func (s *Session) Current() *Frame {
	return s.current.Load()
}

// Stats returns a copy of the loop counters.
func (s *Session) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Run processes events until Close or ctx cancellation. Events already queued
// when the loop wakes are folded into a single frame. Cancelling ctx closes the
// session with DiscardPending.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.done)
	defer close(s.frames)

	s.logEvent(logrus.InfoLevel, "session_start", logrus.Fields{"queue_size": cap(s.queue)})

	for {
		// Shutdown takes precedence over queued work so DiscardPending holds.
		select {
		case <-s.closing:
			s.shutdown()
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			// Nothing will read the queue again; refuse further events.
			s.Close(DiscardPending)
			s.shutdown()
			return ctx.Err()

		case <-s.closing:
			s.shutdown()
			return nil

		case ev := <-s.queue:
			s.process(s.drain([]Event{ev}))
		}
	}
}

func (s *Session) drain(batch []Event) []Event {
	for {
		select {
		case ev := <-s.queue:
			batch = append(batch, ev)
		default:
			return batch
		}
	}
}

func (s *Session) shutdown() {
	s.inflight.Wait()
	pending := s.drain(nil)
	mode := CloseMode(s.mode.Load())
	switch {
	case len(pending) == 0:
	case mode == DiscardPending:
		s.statsMu.Lock()
		s.stats.Discarded += uint64(len(pending))
		s.statsMu.Unlock()
	default:
		s.process(pending)
	}
	s.logEvent(logrus.InfoLevel, "session_stop", logrus.Fields{
		"mode":    mode.String(),
		"pending": len(pending),
	})
}

// process applies a batch of events and publishes at most one frame.
func (s *Session) process(batch []Event) {
	var (
		total reconcile.Result
		errs  []error
		force bool
	)
	for _, ev := range batch {
		res, forced, err := s.safeApply(ev)
		total = total.Add(res)
		force = force || forced
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ev.eventName(), err))
		}
	}
	err := errors.Join(errs...)

	s.statsMu.Lock()
	s.stats.Processed += uint64(len(batch))
	s.stats.Coalesced += uint64(len(batch) - 1)
	s.stats.LastResult = total
	s.stats.LastEventAt = time.Now()
	s.statsMu.Unlock()

	if err != nil {
		s.logEvent(logrus.WarnLevel, "apply_failed", logrus.Fields{
			"events": len(batch),
			"error":  err.Error(),
		})
	}

	prev := s.current.Load()
	if prev != nil && !force && !total.Changed() && err == nil {
		s.logEvent(logrus.DebugLevel, "frame_skipped", logrus.Fields{
			"events":    len(batch),
			"stale":     total.Stale,
			"unchanged": total.Unchanged,
		})
		return
	}

	frame := s.buildFrame(prev, total, len(batch), err)
	s.current.Store(frame)
	s.publish(frame)

	s.logEvent(logrus.DebugLevel, "frame", logrus.Fields{
		"version": frame.Version,
		"events":  len(batch),
		"applied": total.Applied,
		"removed": total.Removed,
		"stale":   total.Stale,
		"pulses":  len(frame.Pulses),
	})
}

// safeApply keeps a panicking event from taking down the loop.
func (s *Session) safeApply(ev Event) (res reconcile.Result, force bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logEvent(logrus.ErrorLevel, "apply_panic", logrus.Fields{
				"event": ev.eventName(),
				"panic": fmt.Sprintf("%v", r),
				"stack": string(debug.Stack()),
			})
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.apply(ev)
}

func (s *Session) apply(ev Event) (reconcile.Result, bool, error) {
	switch e := ev.(type) {
	case FullLoad:
		res, err := s.rec.Ingest(reconcile.FullUpdate(e.Issues))
		s.logEvent(logrus.DebugLevel, "full_load", logrus.Fields{
			"source":  e.Source,
			"issues":  len(e.Issues),
			"applied": res.Applied,
			"removed": res.Removed,
		})
		return res, false, err
	case Upsert:
		res, err := s.rec.Ingest(reconcile.IncrementalUpdate(e.Issues))
		return res, false, err
	case Remove:
		res, err := s.rec.Ingest(reconcile.IncrementalUpdate(nil, e.IDs...))
		return res, false, err
	case Optimistic:
		res, err := s.rec.Ingest(reconcile.IncrementalUpdate([]model.Issue{e.Issue}))
		return res, false, err
	case SetPreset:
		if !e.Preset.Valid() {
			s.logEvent(logrus.WarnLevel, "unknown_preset", logrus.Fields{"preset": string(e.Preset)})
		}
		s.rec.SetPreset(e.Preset)
		return reconcile.Result{}, true, nil
	case SetBoardConfig:
		if err := e.Config.Validate(); err != nil {
			return reconcile.Result{}, false, err
		}
		s.rec.SetBoardConfig(e.Config)
		return reconcile.Result{}, true, nil
	case Refresh:
		return reconcile.Result{}, true, nil
	default:
		return reconcile.Result{}, false, fmt.Errorf("unknown event %T", ev)
	}
}

func (s *Session) buildFrame(prev *Frame, res reconcile.Result, events int, err error) *Frame {
	snap := s.rec.Snapshot()

	var prevSnap *reconcile.Snapshot
	if prev != nil {
		prevSnap = prev.Snapshot
		for _, col := range prevSnap.Columns {
			for _, card := range col.Cards {
				if snap.Card(card.Issue.ID) == nil {
					s.tracker.ForgetIssue(card.Issue.ID)
				}
			}
		}
	}

	pulses := make(map[string]pulse.Fields)
	for _, col := range snap.Columns {
		for _, card := range col.Cards {
			// An identical card pointer means nothing about the issue changed.
			if prevSnap != nil && prevSnap.Card(card.Issue.ID) == card {
				continue
			}
			if fields := s.observe(card); fields.Any() {
				pulses[card.Issue.ID] = fields
			}
		}
	}

	return &Frame{
		Snapshot: snap,
		Pulses:   pulses,
		Version:  snap.Version,
		Result:   res,
		Events:   events,
		Err:      err,
	}
}

func (s *Session) observe(card *reconcile.Card) pulse.Fields {
	issue := card.Issue
	values := [...]struct {
		field pulse.Field
		value string
	}{
		{pulse.FieldTitle, issue.Title},
		{pulse.FieldStatus, string(issue.Status)},
		{pulse.FieldPriority, strconv.Itoa(issue.Priority)},
		{pulse.FieldAssignee, issue.Assignee},
		{pulse.FieldLabels, strings.Join(issue.Labels, "\x00")},
		{pulse.FieldColumn, card.Column},
		{pulse.FieldUpdated, issue.UpdatedAt},
	}

	var fields pulse.Fields
	for _, v := range values {
		if s.tracker.Observe(pulse.Key{IssueID: issue.ID, Field: v.field}, v.value) {
			fields = fields.With(v.field)
		}
	}
	return fields
}

// publish hands the frame to the consumer; the newest frame wins when the
// buffer is full.
func (s *Session) publish(frame *Frame) {
	s.statsMu.Lock()
	s.stats.Frames++
	s.statsMu.Unlock()

	for {
		select {
		case s.frames <- frame:
			return
		default:
		}

		select {
		case <-s.frames:
			metrics.DroppedFrames.Inc()
			s.statsMu.Lock()
			s.stats.DroppedFrames++
			s.statsMu.Unlock()
		default:
		}
	}
}
