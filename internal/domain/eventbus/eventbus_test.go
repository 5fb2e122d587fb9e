package eventbus

import (
	"sync/atomic"
	"testing"
)

func TestPublishSubscribe(t *testing.T) {
	bus := New()

	var got SpeechEventData
	if err := bus.Subscribe(EventSpeechStart, func(data SpeechEventData) {
		got = data
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	bus.Publish(EventSpeechStart, SpeechEventData{SessionID: "s-1", Timestamp: 42})
	if got.SessionID != "s-1" || got.Timestamp != 42 {
		t.Errorf("unexpected event data: %+v", got)
	}
}

func TestAsyncSubscribersComplete(t *testing.T) {
	bus := New()

	var count atomic.Int32
	if err := bus.SubscribeAsync(EventSessionCompleted, func(SessionEventData) {
		count.Add(1)
	}); err != nil {
		t.Fatalf("SubscribeAsync failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		bus.Publish(EventSessionCompleted, SessionEventData{SessionID: "s"})
	}
	bus.WaitAsync()

	if count.Load() != 5 {
		t.Errorf("expected 5 async deliveries, got %d", count.Load())
	}
}

func TestIndependentBusInstances(t *testing.T) {
	a := New()
	b := New()

	fired := false
	if err := a.Subscribe(EventConnectionUp, func(ConnectionEventData) {
		fired = true
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(EventConnectionUp, ConnectionEventData{URL: "ws://other"})
	if fired {
		t.Error("event leaked across bus instances")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()

	calls := 0
	handler := func(ConnectionEventData) { calls++ }
	if err := bus.Subscribe(EventConnectionDown, handler); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	bus.Publish(EventConnectionDown, ConnectionEventData{URL: "ws://a"})
	if err := bus.Unsubscribe(EventConnectionDown, handler); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	bus.Publish(EventConnectionDown, ConnectionEventData{URL: "ws://a"})

	if calls != 1 {
		t.Errorf("expected 1 delivery, got %d", calls)
	}
}
