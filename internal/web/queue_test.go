package web

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/quotedesk/quotedesk/internal/whatsapp"
)

func TestQueueProcessesTasks(t *testing.T) {
	var mu sync.Mutex
	var got []string

	q := NewQueue(8, 2, func(ctx context.Context, task Task) {
		mu.Lock()
		got = append(got, task.Message.MessageID)
		mu.Unlock()
	})
	q.Start(context.Background())

	for _, id := range []string{"wamid.1", "wamid.2", "wamid.3"} {
		if _, ok := q.Enqueue(whatsapp.IncomingText{MessageID: id}); !ok {
			t.Fatalf("enqueue %s rejected", id)
		}
	}
	q.Stop()

	if len(got) != 3 {
		t.Errorf("processed %d tasks, want 3: %v", len(got), got)
	}
}

func TestQueueAtMostOnce(t *testing.T) {
	var mu sync.Mutex
	counts := make(map[string]int)

	q := NewQueue(16, 4, func(ctx context.Context, task Task) {
		mu.Lock()
		counts[task.Message.MessageID]++
		mu.Unlock()
	})
	q.Start(context.Background())

	for i := 0; i < 10; i++ {
		q.Enqueue(whatsapp.IncomingText{MessageID: "wamid." + string(rune('a'+i))})
	}
	q.Stop()

	for id, n := range counts {
		if n != 1 {
			t.Errorf("message %s processed %d times", id, n)
		}
	}
	if len(counts) != 10 {
		t.Errorf("processed %d distinct messages, want 10", len(counts))
	}
}

func TestQueueFullRejects(t *testing.T) {
	// No workers started, so accepted tasks sit in the channel.
	q := NewQueue(2, 1, func(ctx context.Context, task Task) {})

	if _, ok := q.Enqueue(whatsapp.IncomingText{MessageID: "1"}); !ok {
		t.Fatal("first enqueue rejected")
	}
	if _, ok := q.Enqueue(whatsapp.IncomingText{MessageID: "2"}); !ok {
		t.Fatal("second enqueue rejected")
	}
	if _, ok := q.Enqueue(whatsapp.IncomingText{MessageID: "3"}); ok {
		t.Error("enqueue beyond capacity should be rejected, not block")
	}
	if q.Len() != 2 {
		t.Errorf("queue length: got %d, want 2", q.Len())
	}
}

func TestQueueStopWaitsForInFlight(t *testing.T) {
	done := make(chan struct{})
	q := NewQueue(4, 1, func(ctx context.Context, task Task) {
		time.Sleep(20 * time.Millisecond)
		close(done)
	})
	q.Start(context.Background())
	q.Enqueue(whatsapp.IncomingText{MessageID: "1"})
	q.Stop()

	select {
	case <-done:
	default:
		t.Error("Stop returned before in-flight task finished")
	}
}
