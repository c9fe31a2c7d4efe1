package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a buffer shared with the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerDrawsMessage(t *testing.T) {
	var out syncBuffer
	s := newSpinner(context.Background(), &out, "Building content")
	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if !bytes.Contains([]byte(out.String()), []byte("Building content")) {
		t.Errorf("output %q does not contain the message", out.String())
	}
	// Stop cancels the spinner context too.
	if !s.Cancelled() {
		t.Error("Cancelled() = false after Stop")
	}
}

func TestSpinnerStopsWithContext(t *testing.T) {
	tests := []struct {
		name string
		ctx  func() (context.Context, context.CancelFunc)
	}{
		{"cancel", func() (context.Context, context.CancelFunc) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx, cancel
		}},
		{"timeout", func() (context.Context, context.CancelFunc) {
			return context.WithTimeout(context.Background(), 20*time.Millisecond)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := tt.ctx()
			defer cancel()

			s := newSpinner(ctx, &syncBuffer{}, "Building")
			s.Start()
			time.Sleep(100 * time.Millisecond)

			if !s.Cancelled() {
				t.Error("Cancelled() = false after context ended")
			}
			s.Stop()
		})
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinner(context.Background(), &syncBuffer{}, "Building")
	s.Start()
	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerCountsDocuments(t *testing.T) {
	var out syncBuffer
	s := newSpinner(context.Background(), &out, "Building")
	ctx := context.Background()

	s.OnDocumentComplete(ctx, "a.md", 2, time.Millisecond, nil)
	s.OnDocumentComplete(ctx, "b.md", 1, time.Millisecond, nil)
	s.OnDocumentComplete(ctx, "c.md", 5, time.Millisecond, errors.New("broken frontmatter"))

	if got := s.Documents(); got != 2 {
		t.Errorf("Documents() = %d, want 2", got)
	}

	s.Start()
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if want := "Building (2 documents, 3 diagrams)"; !bytes.Contains([]byte(out.String()), []byte(want)) {
		t.Errorf("output %q does not contain %q", out.String(), want)
	}
}
