package assistant

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voice-assistant-go/internal/core/connection"
	"voice-assistant-go/internal/domain/conversation"
	"voice-assistant-go/internal/domain/eventbus"
	platformtesting "voice-assistant-go/internal/platform/testing"
)

type fakeDetector struct {
	speaking atomic.Bool
	startErr error
	started  atomic.Int32
	stopped  atomic.Int32
}

func (d *fakeDetector) Start() error {
	if d.startErr != nil {
		return d.startErr
	}
	d.started.Add(1)
	return nil
}

func (d *fakeDetector) Stop()                  { d.stopped.Add(1) }
func (d *fakeDetector) IsSpeechDetected() bool { return d.speaking.Load() }

type fakeSender struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	connectCalls int
	sent         []connection.SpeechRequest
	response     connection.Response
	sendErr      error
}

func (s *fakeSender) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectCalls++
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *fakeSender) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *fakeSender) Send(_ context.Context, req connection.SpeechRequest) (connection.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	if s.sendErr != nil {
		return connection.Response{}, s.sendErr
	}
	return s.response, nil
}

func (s *fakeSender) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSender) State() connection.State {
	if s.IsConnected() {
		return connection.StateConnected
	}
	return connection.StateDisconnected
}

func (s *fakeSender) sentRequests() []connection.SpeechRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]connection.SpeechRequest, len(s.sent))
	copy(out, s.sent)
	return out
}

type fakeVision struct {
	image []byte
}

func (v *fakeVision) Capture(context.Context) []byte { return v.image }
func (v *fakeVision) Analyze([]byte) map[string]any {
	return map[string]any{"lighting": "light"}
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recordedInteraction
}

type recordedInteraction struct {
	userInput      string
	systemResponse string
	metadata       map[string]any
}

func (r *fakeRecorder) AddInteraction(_ context.Context, userInput, systemResponse string, metadata map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, recordedInteraction{userInput, systemResponse, metadata})
	return nil
}

func (r *fakeRecorder) GetHistory(context.Context, int) ([]conversation.InteractionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make([]conversation.InteractionRecord, len(r.entries))
	for i, e := range r.entries {
		records[i] = conversation.InteractionRecord{
			UserInput:      e.userInput,
			SystemResponse: e.systemResponse,
			Metadata:       e.metadata,
		}
	}
	return records, nil
}

func (r *fakeRecorder) list() []recordedInteraction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedInteraction, len(r.entries))
	copy(out, r.entries)
	return out
}

type testPipeline struct {
	orch     *Orchestrator
	detector *fakeDetector
	sender   *fakeSender
	recorder *fakeRecorder
	vision   *fakeVision
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	p := &testPipeline{
		detector: &fakeDetector{},
		sender: &fakeSender{
			response: connection.Response{Transcription: "turn on the lights", Response: "done"},
		},
		recorder: &fakeRecorder{},
		vision:   &fakeVision{image: []byte{0xff, 0xd8, 0xff}},
	}
	p.orch = New(
		Options{PollInterval: 2 * time.Millisecond, LivenessInterval: time.Hour},
		Dependencies{
			Detector: p.detector,
			Conn:     p.sender,
			Vision:   p.vision,
			History:  p.recorder,
			Bus:      eventbus.New(),
			Logger:   platformtesting.SetupTestLogger(t),
		},
	)
	return p
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func (p *testPipeline) hasEvent(eventType string) bool {
	for _, ev := range p.orch.RecentEvents(0) {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}

func TestSpeechSessionEndToEnd(t *testing.T) {
	p := newTestPipeline(t)

	if err := p.orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.orch.Stop()

	p.detector.speaking.Store(true)
	waitFor(t, "speech start", func() bool { return p.hasEvent("speech_start") })

	frame := make([]int16, 480)
	for i := range frame {
		frame[i] = 1000
	}
	for i := 0; i < 10; i++ {
		p.orch.HandleFrame(frame, true)
	}

	p.detector.speaking.Store(false)
	waitFor(t, "session completion", func() bool { return p.hasEvent("session_completed") })

	sent := p.sender.sentRequests()
	if len(sent) != 1 {
		t.Fatalf("expected 1 request, got %d", len(sent))
	}
	req := sent[0]

	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		t.Fatalf("audio is not valid base64: %v", err)
	}
	if len(audio) != 10*480*2 {
		t.Errorf("expected %d audio bytes, got %d", 10*480*2, len(audio))
	}
	if req.Image == "" {
		t.Error("expected captured image in request")
	}
	if req.ImageAnalysis["lighting"] != "light" {
		t.Errorf("expected image analysis to be attached, got %v", req.ImageAnalysis)
	}

	entries := p.recorder.list()
	if len(entries) != 1 {
		t.Fatalf("expected 1 recorded interaction, got %d", len(entries))
	}
	if entries[0].userInput != "turn on the lights" || entries[0].systemResponse != "done" {
		t.Errorf("unexpected interaction: %+v", entries[0])
	}
	if entries[0].metadata["has_image"] != true {
		t.Errorf("expected has_image metadata, got %v", entries[0].metadata)
	}

	status := p.orch.Status()
	if status.SessionsCompleted != 1 || status.SessionsFailed != 0 {
		t.Errorf("unexpected status counters: %+v", status)
	}
	if status.LastTranscription != "turn on the lights" {
		t.Errorf("unexpected last transcription: %q", status.LastTranscription)
	}

	recent := p.orch.RecentEvents(1)
	if len(recent) != 1 || recent[0].Type != "session_completed" {
		t.Errorf("expected bounded snapshot ending with session_completed, got %+v", recent)
	}
	if got := len(p.orch.RecentEvents(2)); got != 2 {
		t.Errorf("expected 2 events from bounded snapshot, got %d", got)
	}
}

func TestEmptyUtteranceIsDiscarded(t *testing.T) {
	p := newTestPipeline(t)

	if err := p.orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.orch.Stop()

	p.detector.speaking.Store(true)
	waitFor(t, "speech start", func() bool { return p.hasEvent("speech_start") })
	p.detector.speaking.Store(false)
	waitFor(t, "discard", func() bool { return p.hasEvent("session_discarded") })

	if got := len(p.sender.sentRequests()); got != 0 {
		t.Errorf("empty utterance must not reach the backend, got %d requests", got)
	}
	if got := len(p.recorder.list()); got != 0 {
		t.Errorf("empty utterance must not be recorded, got %d entries", got)
	}
	if status := p.orch.Status(); status.SessionsDiscarded != 1 {
		t.Errorf("expected 1 discarded session, got %+v", status)
	}
}

func TestBackendErrorFailsSession(t *testing.T) {
	p := newTestPipeline(t)
	p.sender.response = connection.Response{Error: "speech recognition unavailable"}

	failed := make(chan eventbus.SessionEventData, 1)
	p.orch.bus.Subscribe(eventbus.EventSessionFailed, func(data eventbus.SessionEventData) {
		failed <- data
	})

	if err := p.orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.orch.Stop()

	p.detector.speaking.Store(true)
	waitFor(t, "speech start", func() bool { return p.hasEvent("speech_start") })
	p.orch.HandleFrame(make([]int16, 480), true)
	p.detector.speaking.Store(false)

	select {
	case data := <-failed:
		if data.Error != "speech recognition unavailable" {
			t.Errorf("unexpected failure detail: %q", data.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session failure never published")
	}

	if got := len(p.recorder.list()); got != 0 {
		t.Errorf("failed session must not be recorded, got %d entries", got)
	}
	if status := p.orch.Status(); status.SessionsFailed != 1 {
		t.Errorf("expected 1 failed session, got %+v", status)
	}
}

func TestStartUnwindsOnConnectFailure(t *testing.T) {
	p := newTestPipeline(t)
	p.sender.connectErr = context.DeadlineExceeded

	if err := p.orch.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail when backend is unreachable")
	}
	if p.orch.IsRunning() {
		t.Error("orchestrator must not report running after failed start")
	}
	if p.detector.started.Load() != 0 {
		t.Error("detector must not be started when connection fails")
	}
}

func TestStartUnwindsOnDetectorFailure(t *testing.T) {
	p := newTestPipeline(t)
	p.detector.startErr = context.DeadlineExceeded

	if err := p.orch.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail when detector cannot start")
	}
	if p.orch.IsRunning() {
		t.Error("orchestrator must not report running after failed start")
	}
	if p.sender.IsConnected() {
		t.Error("connection must be torn down when detector fails to start")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p := newTestPipeline(t)

	if err := p.orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.orch.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := p.orch.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if p.orch.IsRunning() {
		t.Error("orchestrator still reports running after stop")
	}
	if p.detector.stopped.Load() != 1 {
		t.Errorf("expected detector stopped once, got %d", p.detector.stopped.Load())
	}
}

func TestStartWhileRunningFails(t *testing.T) {
	p := newTestPipeline(t)

	if err := p.orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.orch.Stop()

	if err := p.orch.Start(context.Background()); err == nil {
		t.Error("expected error starting an already running orchestrator")
	}
}

func TestLivenessCheckReconnects(t *testing.T) {
	p := newTestPipeline(t)
	p.orch.opts.LivenessInterval = time.Millisecond

	if err := p.orch.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer p.orch.Stop()

	p.sender.Disconnect()

	waitFor(t, "liveness reconnect", func() bool {
		p.sender.mu.Lock()
		defer p.sender.mu.Unlock()
		return p.sender.connectCalls >= 2 && p.sender.connected
	})
}
