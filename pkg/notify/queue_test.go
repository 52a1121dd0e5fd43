package notify

import (
	"bytes"
	"testing"
	"time"
)

func TestQueueTryEnqueueAndDrop(t *testing.T) {
	q := NewQueue(2)

	if err := q.TryEnqueue([]byte("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.TryEnqueue([]byte("b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// next should fail with ErrQueueFull
	if err := q.TryEnqueue([]byte("c")); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", q.Dropped())
	}
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
}

func TestQueuePayloadIsCopied(t *testing.T) {
	q := NewQueue(1)
	src := []byte("payload")
	if err := q.TryEnqueue(src); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// mutating the caller's slice must not affect the queued copy
	src[0] = 'X'

	select {
	case it := <-q.Out():
		if !bytes.Equal(it.Payload, []byte("payload")) {
			t.Fatalf("payload aliased caller memory: %q", it.Payload)
		}
		it.Done()
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timed out waiting for item")
	}
}

func TestQueueCloseAndDrain(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 3; i++ {
		if err := q.TryEnqueue([]byte("x")); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	q.CloseAndDrain()
	if _, ok := <-q.Out(); ok {
		t.Fatalf("queue should be closed and empty")
	}
}

func TestItemDoneIsIdempotent(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryEnqueue([]byte("once")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	it := <-q.Out()
	it.Done()
	it.Done() // second call must be a no-op
}
