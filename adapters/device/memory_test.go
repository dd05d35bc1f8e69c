package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/medicinal/domain"
)

func TestMemoryCapture(t *testing.T) {
	registry := NewRegistry()
	capture := NewMemoryCapture("microphone", registry, zaptest.NewLogger(t))

	if capture.Push(make([]float32, 4)) {
		t.Error("Push before Open should fail")
	}

	frames, err := capture.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewMemoryCapture("microphone", registry, zaptest.NewLogger(t)).Open(context.Background()); !errors.Is(err, domain.ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
	}

	if !capture.Push([]float32{0.25}) {
		t.Fatal("Push failed")
	}
	if f := <-frames; f[0] != 0.25 {
		t.Errorf("Unexpected frame %v", f)
	}

	capture.Close()
	if _, ok := <-frames; ok {
		t.Error("Expected frames channel closed")
	}
	if registry.InUse("microphone") {
		t.Error("Expected claim released")
	}
}

func TestMemoryOutput_Flush(t *testing.T) {
	clock := &manualClock{now: time.Unix(1700000000, 0)}
	out := NewMemoryOutput("speaker", NewRegistry(), zaptest.NewLogger(t))
	out.now = clock.Now

	if err := out.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	for i := 0; i < 4; i++ {
		if err := out.Play(time.Duration(i)*100*time.Millisecond, make([]float32, 2400)); err != nil {
			t.Fatal(err)
		}
	}

	clock.Advance(150 * time.Millisecond)
	if err := out.Flush(); err != nil {
		t.Fatal(err)
	}

	played := out.Played()
	if len(played) != 2 {
		t.Fatalf("Expected 2 chunks kept, got %d", len(played))
	}
	if out.Flushed() != 2 {
		t.Errorf("Expected 2 flushed chunks, got %d", out.Flushed())
	}
}
