package energy

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"voice-assistant-go/internal/domain/vad/inter"
	"voice-assistant-go/internal/platform/errors"
	"voice-assistant-go/internal/platform/logging"
	"voice-assistant-go/internal/util"
)

const (
	// Threshold shaping. Calibration uses a wider multiplier than the
	// adaptive recomputation so a quiet room does not start over-eager.
	calibrationMultiplier = 2.5
	adaptiveMultiplier    = 2.0
	minThreshold          = 0.01

	// Adaptive window: last 30 frame energies, recomputed from the 30th
	// percentile once at least 10 samples exist.
	energyWindowSize   = 30
	adaptiveMinSamples = 10
	adaptivePercentile = 0.3

	stopJoinTimeout = 2 * time.Second
)

// Ensure Detector implements the domain interface.
var _ inter.Detector = (*Detector)(nil)

// Detector is an adaptive energy-threshold voice activity detector.
// All detection state is owned by the single processing goroutine;
// external readers only see the atomic speech flag.
type Detector struct {
	cfg     inter.Config
	logger  *logging.Logger
	factory inter.SourceFactory
	sink    inter.FrameSink

	mu      sync.Mutex // serializes Start/Stop
	source  inter.AudioSource
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool

	isSpeech atomic.Bool

	// Loop-local state, untouched outside the processing goroutine.
	threshold    float64
	energyWindow *util.Ring[float64]
	speechStart  time.Time
	silenceStart time.Time

	now func() time.Time
}

// New creates a detector reading frames from sources opened by factory.
func New(cfg inter.Config, factory inter.SourceFactory, logger *logging.Logger) *Detector {
	if cfg.SampleRate <= 0 {
		cfg = inter.DefaultConfig()
	}
	return &Detector{
		cfg:          cfg,
		logger:       logger,
		factory:      factory,
		energyWindow: util.NewRing[float64](energyWindowSize),
		now:          time.Now,
	}
}

// SetFrameSink registers a sink receiving every processed frame. Must be
// called before Start.
func (d *Detector) SetFrameSink(sink inter.FrameSink) {
	d.sink = sink
}

// Start opens the audio source, calibrates against ambient noise and
// launches the processing loop. A source that cannot be opened or read
// surfaces a device error and leaves the detector stopped.
func (d *Detector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.CompareAndSwap(false, true) {
		d.logger.WarnTag("VAD", "already running")
		return nil
	}

	source, err := d.factory()
	if err != nil {
		d.running.Store(false)
		return errors.Wrap(errors.KindDevice, "vad.start", "audio device unavailable", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := d.calibrate(ctx, source); err != nil {
		cancel()
		_ = source.Close()
		d.running.Store(false)
		return errors.Wrap(errors.KindDevice, "vad.calibrate", "calibration read failed", err)
	}

	d.source = source
	d.cancel = cancel
	d.done = make(chan struct{})
	d.isSpeech.Store(false)
	d.speechStart = time.Time{}
	d.silenceStart = time.Time{}

	go d.run(ctx, source)

	d.logger.InfoTag("VAD", "started, threshold=%.4f sensitivity=%.2f", d.threshold, d.cfg.Sensitivity)
	return nil
}

// Stop signals the loop to exit, waits for it with a bounded join and
// releases the audio source. Safe to call multiple times.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.CompareAndSwap(true, false) {
		return
	}

	d.cancel()
	select {
	case <-d.done:
	case <-time.After(stopJoinTimeout):
		d.logger.WarnTag("VAD", "processing loop did not exit within %v", stopJoinTimeout)
	}

	if d.source != nil {
		_ = d.source.Close()
		d.source = nil
	}
	d.isSpeech.Store(false)
	d.energyWindow.Clear()
	d.logger.InfoTag("VAD", "stopped")
}

// IsSpeechDetected reports the current debounced speech state.
func (d *Detector) IsSpeechDetected() bool {
	return d.isSpeech.Load()
}

// calibrate reads ambient audio for the calibration window and derives
// the initial threshold from its mean energy.
func (d *Detector) calibrate(ctx context.Context, source inter.AudioSource) error {
	frames := int(d.cfg.CalibrationWindow.Milliseconds()) / d.cfg.FrameDuration
	if frames < 1 {
		frames = 1
	}

	var sum float64
	for i := 0; i < frames; i++ {
		frame, err := source.Read(ctx)
		if err != nil {
			return err
		}
		e := calculateEnergy(frame)
		sum += e
		d.energyWindow.Append(e)
	}

	mean := sum / float64(frames)
	d.threshold = math.Max(mean*calibrationMultiplier*d.cfg.Sensitivity, minThreshold)
	return nil
}

func (d *Detector) run(ctx context.Context, source inter.AudioSource) {
	defer close(d.done)

	for {
		frame, err := source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.ErrorTag("VAD", "audio read failed: %v", err)
			return
		}
		d.processFrame(frame)
	}
}

// processFrame updates the adaptive threshold and applies the debounced
// hysteresis transition logic to one frame.
func (d *Detector) processFrame(frame []int16) {
	e := calculateEnergy(frame)
	d.energyWindow.Append(e)

	if d.energyWindow.Len() >= adaptiveMinSamples {
		d.threshold = d.adaptiveThreshold()
	}

	now := d.now()
	speaking := d.isSpeech.Load()

	if e > d.threshold {
		if !speaking {
			if d.speechStart.IsZero() {
				d.speechStart = now
			} else if now.Sub(d.speechStart) >= d.cfg.SpeechTimeout {
				d.isSpeech.Store(true)
				speaking = true
				d.logger.DebugTag("VAD", "speech confirmed")
			}
		}
		// Any energy above threshold resets the silence countdown.
		d.silenceStart = time.Time{}
	} else {
		if speaking {
			if d.silenceStart.IsZero() {
				d.silenceStart = now
			} else if now.Sub(d.silenceStart) >= d.cfg.SilenceTimeout {
				d.isSpeech.Store(false)
				speaking = false
				d.speechStart = time.Time{}
				d.silenceStart = time.Time{}
				d.logger.DebugTag("VAD", "end of speech confirmed")
			}
		} else {
			d.speechStart = time.Time{}
		}
	}

	if d.sink != nil {
		d.sink(frame, speaking)
	}
}

// adaptiveThreshold recomputes the threshold from the 30th percentile of
// the recent energy window, clamped to the minimum floor.
func (d *Detector) adaptiveThreshold() float64 {
	window := d.energyWindow.Snapshot()
	sort.Float64s(window)
	base := window[int(float64(len(window))*adaptivePercentile)]
	return math.Max(base*adaptiveMultiplier*d.cfg.Sensitivity, minThreshold)
}

// calculateEnergy returns the normalized RMS energy of a frame of
// 16-bit samples, in the range 0.0-1.0.
func calculateEnergy(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s) / 32767.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
