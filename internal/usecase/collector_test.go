package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ChainPilot/internal/domain/models"
)

type fakeStream struct {
	mu         sync.Mutex
	connected  bool
	reads      int
	reconnects int
	sigCh      chan *models.Signal
	errCh      chan error
}

func (f *fakeStream) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeStream) Subscribe(context.Context) error { return nil }

func (f *fakeStream) Read(context.Context) (<-chan *models.Signal, <-chan error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	f.sigCh = make(chan *models.Signal, 8)
	f.errCh = make(chan error, 1)
	return f.sigCh, f.errCh
}

func (f *fakeStream) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	f.connected = true
	return nil
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeStream) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeStream) current() (chan *models.Signal, chan error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sigCh, f.errCh
}

func (f *fakeStream) counts() (reads, reconnects int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.reconnects
}

func eventually(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestCollectorResumesAfterStreamError(t *testing.T) {
	f := newFixture(t)
	stream := &fakeStream{}
	col := NewSignalCollector(stream, f.proc, nopMetrics{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := col.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// the read loop dies: it reports the error and closes both channels
	sig1, err1 := stream.current()
	err1 <- errors.New("peer reset")
	close(err1)
	close(sig1)

	eventually(t, "collector never reopened the stream", func() bool {
		reads, reconnects := stream.counts()
		return reads >= 2 && reconnects >= 1
	})

	// signals on the fresh channels must still reach the pipeline
	sig2, _ := stream.current()
	sig2 <- testSignal(models.DirectionBuy)

	eventually(t, "signal after resume never produced an order", func() bool {
		return f.queue.Len() == 1
	})
}

func TestCollectorResumesAfterChannelClose(t *testing.T) {
	f := newFixture(t)
	stream := &fakeStream{}
	col := NewSignalCollector(stream, f.proc, nopMetrics{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := col.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// channels closed without an error value, as on a clean remote shutdown
	sig1, err1 := stream.current()
	close(err1)
	close(sig1)

	eventually(t, "collector never reopened the stream", func() bool {
		reads, _ := stream.counts()
		return reads >= 2
	})

	sig2, _ := stream.current()
	sig2 <- testSignal(models.DirectionBuy)

	eventually(t, "signal after resume never produced an order", func() bool {
		return f.queue.Len() == 1
	})
}
