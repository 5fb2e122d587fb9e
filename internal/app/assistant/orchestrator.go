package assistant

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"voice-assistant-go/internal/core/connection"
	"voice-assistant-go/internal/domain/conversation"
	"voice-assistant-go/internal/domain/eventbus"
	"voice-assistant-go/internal/domain/vad/inter"
	"voice-assistant-go/internal/platform/errors"
	"voice-assistant-go/internal/platform/logging"
)

const (
	defaultPollInterval     = 100 * time.Millisecond
	defaultLivenessInterval = 5 * time.Second
	defaultQueueSize        = 64
	defaultEventHistory     = 20
	defaultStopTimeout      = 5 * time.Second
)

// Sender is the connection surface the orchestrator depends on.
type Sender interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Send(ctx context.Context, req connection.SpeechRequest) (connection.Response, error)
	IsConnected() bool
	State() connection.State
}

// Capturer provides optional image capture and analysis at speech start.
type Capturer interface {
	Capture(ctx context.Context) []byte
	Analyze(data []byte) map[string]any
}

// Recorder persists completed exchanges and serves them back.
type Recorder interface {
	AddInteraction(ctx context.Context, userInput, systemResponse string, metadata map[string]any) error
	GetHistory(ctx context.Context, limit int) ([]conversation.InteractionRecord, error)
}

// Options tunes the orchestrator loops.
type Options struct {
	PollInterval     time.Duration
	LivenessInterval time.Duration
	QueueSize        int
	EventHistory     int
	StopTimeout      time.Duration
}

func (o *Options) applyDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.LivenessInterval <= 0 {
		o.LivenessInterval = defaultLivenessInterval
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.EventHistory <= 0 {
		o.EventHistory = defaultEventHistory
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = defaultStopTimeout
	}
}

type eventKind int

const (
	evSpeechStart eventKind = iota
	evSpeechEnd
)

type queueEvent struct {
	kind eventKind
	at   time.Time
}

// Orchestrator drives the capture pipeline: it polls the detector for
// speech boundaries, queues them for a single worker, and turns each
// utterance into one request/response exchange.
type Orchestrator struct {
	opts     Options
	detector inter.Detector
	conn     Sender
	vision   Capturer
	history  Recorder
	bus      *eventbus.Bus
	logger   *logging.Logger

	queue  chan queueEvent
	events *eventLog

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	audio *audioBuffer

	statsMu           sync.Mutex
	sessionsCompleted uint64
	sessionsFailed    uint64
	sessionsDiscarded uint64
	lastTranscription string
	lastResponse      string

	now func() time.Time
}

// Dependencies collects the orchestrator's collaborators. Vision is
// optional; everything else is required.
type Dependencies struct {
	Detector inter.Detector
	Conn     Sender
	Vision   Capturer
	History  Recorder
	Bus      *eventbus.Bus
	Logger   *logging.Logger
}

// New builds an orchestrator. Call Start to begin processing.
func New(opts Options, deps Dependencies) *Orchestrator {
	opts.applyDefaults()
	return &Orchestrator{
		opts:     opts,
		detector: deps.Detector,
		conn:     deps.Conn,
		vision:   deps.Vision,
		history:  deps.History,
		bus:      deps.Bus,
		logger:   deps.Logger,
		queue:    make(chan queueEvent, opts.QueueSize),
		events:   newEventLog(opts.EventHistory),
		audio:    newAudioBuffer(),
		now:      time.Now,
	}
}

// HandleFrame is the detector's frame sink. Frames carrying speech are
// accumulated into the current utterance buffer.
func (o *Orchestrator) HandleFrame(frame []int16, speaking bool) {
	if speaking {
		o.audio.append(frame)
	}
}

// Start connects to the backend, starts the detector and launches the
// poll loop and worker. Any failure unwinds what already started.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New(errors.KindSession, "assistant.start", "already running")
	}

	if err := o.conn.Connect(ctx); err != nil {
		o.running.Store(false)
		return errors.Wrap(errors.KindBootstrap, "assistant.start", "backend connection failed", err)
	}
	if err := o.detector.Start(); err != nil {
		o.conn.Disconnect()
		o.running.Store(false)
		return errors.Wrap(errors.KindBootstrap, "assistant.start", "voice detection failed to start", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel

	o.wg.Add(2)
	go o.pollLoop(loopCtx)
	go o.worker(loopCtx)

	o.logger.InfoTag("SESSION", "assistant started")
	return nil
}

// Stop halts the loops, waiting a bounded time for the worker to drain.
func (o *Orchestrator) Stop() error {
	if !o.running.CompareAndSwap(true, false) {
		return nil
	}

	o.cancel()
	o.detector.Stop()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	var joinErr error
	select {
	case <-done:
	case <-time.After(o.opts.StopTimeout):
		joinErr = errors.New(errors.KindSession, "assistant.stop", "worker did not stop in time")
		o.logger.WarnTag("SESSION", "worker did not stop within %s", o.opts.StopTimeout)
	}

	o.conn.Disconnect()
	o.bus.WaitAsync()
	o.logger.InfoTag("SESSION", "assistant stopped")
	return joinErr
}

// IsRunning reports whether the pipeline is active.
func (o *Orchestrator) IsRunning() bool {
	return o.running.Load()
}

// pollLoop samples the detector for speech boundary transitions and
// periodically nudges a dropped connection back up.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	speaking := false
	lastLiveness := o.now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cur := o.detector.IsSpeechDetected()
		if cur != speaking {
			speaking = cur
			kind := evSpeechEnd
			if cur {
				kind = evSpeechStart
			}
			o.enqueue(queueEvent{kind: kind, at: o.now()})
		}

		if now := o.now(); now.Sub(lastLiveness) >= o.opts.LivenessInterval {
			lastLiveness = now
			if !o.conn.IsConnected() {
				o.logger.WarnTag("SESSION", "backend unreachable (state=%s), retrying", o.conn.State())
				if err := o.conn.Connect(ctx); err != nil {
					o.logger.DebugTag("SESSION", "liveness reconnect failed: %v", err)
				}
			}
		}
	}
}

// enqueue hands an event to the worker without ever blocking the poll
// loop. A full queue drops the event.
func (o *Orchestrator) enqueue(ev queueEvent) {
	select {
	case o.queue <- ev:
	default:
		o.logger.WarnTag("SESSION", "event queue full, dropping event")
	}
}

// worker consumes boundary events sequentially so at most one session is
// in flight at any time.
func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()

	var session *session
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-o.queue:
			switch ev.kind {
			case evSpeechStart:
				session = o.beginSession(ctx, ev.at)
			case evSpeechEnd:
				if session == nil {
					continue
				}
				o.finishSession(ctx, session, ev.at)
				session = nil
			}
		}
	}
}
