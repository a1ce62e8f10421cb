package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"printerbot/internal/config"
	"printerbot/internal/printer"
)

type sent struct {
	topic    string
	retained bool
	payload  string
}

type fakeClient struct {
	mu     sync.Mutex
	sent   []sent
	err    error
	closed bool
}

func (f *fakeClient) Publish(topic string, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{topic: topic, retained: retained, payload: string(payload)})
	return nil
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeClient) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func TestPublish_SkipsUnchangedSnapshot(t *testing.T) {
	fc := &fakeClient{}
	p := New(fc, "printerbot/state", nil)
	snap := printer.Snapshot{Connected: true, Phase: printer.PhasePrinting, Filename: "cube.gcode"}

	if err := p.Publish(snap); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := p.Publish(snap); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	snap.Progress = 0.5
	if err := p.Publish(snap); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	msgs := fc.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].topic != "printerbot/state" || !msgs[0].retained {
		t.Fatalf("unexpected message %+v", msgs[0])
	}
	var got struct {
		Phase    string  `json:"phase"`
		Progress float64 `json:"progress"`
	}
	if err := json.Unmarshal([]byte(msgs[1].payload), &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Phase != "printing" || got.Progress != 0.5 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestPublish_FailureIsRetried(t *testing.T) {
	fc := &fakeClient{err: errors.New("broker gone")}
	p := New(fc, "t", nil)
	snap := printer.Snapshot{Connected: true}

	if err := p.Publish(snap); err == nil {
		t.Fatalf("expected error")
	}
	fc.mu.Lock()
	fc.err = nil
	fc.mu.Unlock()
	if err := p.Publish(snap); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(fc.messages()) != 1 {
		t.Fatalf("expected the failed payload to be sent again")
	}
}

func TestRun_PublishesAndGoesOffline(t *testing.T) {
	fc := &fakeClient{}
	p := New(fc, "printerbot/state", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, 10*time.Millisecond, func() printer.Snapshot { return printer.Snapshot{Connected: true} })
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for len(fc.messages()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return")
	}

	msgs := fc.messages()
	last := msgs[len(msgs)-1]
	if last.topic != "printerbot/state/availability" || last.payload != "offline" {
		t.Fatalf("expected offline message last, got %+v", last)
	}
	if !fc.closed {
		t.Fatalf("expected client closed")
	}
}

func TestDial_NoBroker(t *testing.T) {
	if _, err := Dial(config.MQTT{}, nil); !errors.Is(err, ErrNoBroker) {
		t.Fatalf("expected ErrNoBroker, got %v", err)
	}
}
