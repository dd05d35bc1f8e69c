package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/medicinal/domain"
	"github.com/satriahrh/medicinal/internal/audio"
)

type bufferWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (b *bufferWriter) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, io.ErrClosedPipe
	}
	return b.buf.Write(p)
}

func (b *bufferWriter) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *bufferWriter) bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func newTestOutput(t *testing.T, registry *Registry) (*StreamOutput, *manualClock, *[]*bufferWriter) {
	t.Helper()
	var writers []*bufferWriter
	var mu sync.Mutex
	opener := func(ctx context.Context) (io.WriteCloser, error) {
		mu.Lock()
		defer mu.Unlock()
		w := &bufferWriter{}
		writers = append(writers, w)
		return w, nil
	}
	clock := &manualClock{now: time.Unix(1700000000, 0)}
	out := NewStreamOutput("speaker", 24000, opener, registry, zaptest.NewLogger(t))
	out.now = clock.Now
	return out, clock, &writers
}

func TestStreamOutput_InsertsSilenceForGaps(t *testing.T) {
	out, clock, writers := newTestOutput(t, NewRegistry())
	if err := out.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer out.Close()

	chunk := make([]float32, 240) // 10ms
	for i := range chunk {
		chunk[i] = 0.5
	}

	if err := out.Play(0, chunk); err != nil {
		t.Fatal(err)
	}
	if err := out.Play(20*time.Millisecond, chunk); err != nil {
		t.Fatal(err)
	}

	w := (*writers)[0]
	waitFor(t, "pump", func() bool { return len(w.bytes()) == 480*3 })

	got := w.bytes()
	if v := int16(binary.LittleEndian.Uint16(got[0:])); v != 16383 {
		t.Errorf("First sample = %d, want 16383", v)
	}
	if !bytes.Equal(got[480:960], make([]byte, 480)) {
		t.Error("Expected 10ms of silence between chunks")
	}
	if v := int16(binary.LittleEndian.Uint16(got[960:])); v != 16383 {
		t.Errorf("Second chunk sample = %d, want 16383", v)
	}

	// After the writer drained, the cursor follows the clock.
	clock.Advance(time.Second)
	if out.Now() != time.Second {
		t.Errorf("Now() = %v, want 1s", out.Now())
	}
	if err := out.Play(time.Second, chunk); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "pump", func() bool { return len(w.bytes()) == 480*4 })
}

func TestStreamOutput_FlushRestartsWriter(t *testing.T) {
	out, _, writers := newTestOutput(t, NewRegistry())
	if err := out.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	if err := out.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(*writers) != 2 {
		t.Fatalf("Expected writer restart, got %d writers", len(*writers))
	}
	first := (*writers)[0]
	first.mu.Lock()
	closed := first.closed
	first.mu.Unlock()
	if !closed {
		t.Error("Expected flushed writer to be closed")
	}

	if err := out.Play(0, make([]float32, 24)); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "write to new writer", func() bool { return len((*writers)[1].bytes()) == 48 })
}

func TestStreamOutput_ExclusiveAndClose(t *testing.T) {
	registry := NewRegistry()
	a, _, _ := newTestOutput(t, registry)
	b, _, _ := newTestOutput(t, registry)

	if err := a.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := b.Open(context.Background()); !errors.Is(err, domain.ErrDeviceUnavailable) {
		t.Fatalf("Expected ErrDeviceUnavailable, got %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Second Close returned %v", err)
	}
	if err := a.Play(0, make([]float32, 10)); err == nil {
		t.Error("Expected Play on closed output to fail")
	}
	if err := b.Open(context.Background()); err != nil {
		t.Errorf("Open after release failed: %v", err)
	}
	b.Close()
}

func TestStreamOutput_OpenFailureReleasesClaim(t *testing.T) {
	registry := NewRegistry()
	out := NewStreamOutput("speaker", 24000, func(context.Context) (io.WriteCloser, error) {
		return nil, errors.New("no audio server")
	}, registry, zaptest.NewLogger(t))

	err := out.Open(context.Background())
	if !errors.Is(err, domain.ErrDeviceUnavailable) {
		t.Fatalf("Expected ErrDeviceUnavailable, got %v", err)
	}
	if registry.InUse("speaker") {
		t.Error("Claim leaked after failed open")
	}
}

func TestStreamCapture_Windows(t *testing.T) {
	samples := make([]float32, 8)
	for i := range samples {
		samples[i] = float32(i) / 8
	}
	pcm := audio.Int16ToBytes(audio.Encode(samples))
	// Two full windows of four samples plus a partial trailing one.
	data := append(pcm, 1, 2)

	registry := NewRegistry()
	capture := NewStreamCapture("microphone", 4, func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, registry, zaptest.NewLogger(t))

	frames, err := capture.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var got [][]float32
	for f := range frames {
		got = append(got, f)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 windows, got %d", len(got))
	}
	if got[1][0] != audioRoundTrip(samples[4]) {
		t.Errorf("Unexpected first sample of second window: %v", got[1][0])
	}

	if !registry.InUse("microphone") {
		t.Error("Expected claim while open")
	}
	if err := capture.Close(); err != nil {
		t.Fatal(err)
	}
	if registry.InUse("microphone") {
		t.Error("Expected claim released on Close")
	}
	if err := capture.Close(); err != nil {
		t.Errorf("Second Close returned %v", err)
	}
}

func audioRoundTrip(s float32) float32 {
	out, _ := audio.Decode(audio.Int16ToBytes(audio.Encode([]float32{s})))
	return out[0]
}
