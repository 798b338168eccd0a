package execution

import (
	"fmt"
	"testing"
	"time"

	"ChainPilot/internal/domain/models"
)

func order(id string, priority int) *models.Order {
	return &models.Order{
		ID:        id,
		Token:     "token-" + id,
		Side:      models.DirectionBuy,
		AmountSOL: 1,
		Priority:  priority,
		Status:    models.OrderPending,
		CreatedAt: time.Now(),
	}
}

func TestQueuePriorityOrdering(t *testing.T) {
	q := NewQueue()
	for i, p := range []int{3, 1, 2} {
		if err := q.Enqueue(order(fmt.Sprintf("o%d", i), p)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	var got []int
	for i := 0; i < 3; i++ {
		o, ok := q.Dequeue()
		if !ok {
			t.Fatalf("unexpected close")
		}
		got = append(got, o.Priority)
	}
	want := []int{3, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drain order %v, want %v", got, want)
		}
	}
}

func TestQueueFIFOWithinPriority(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(order(fmt.Sprintf("o%d", i), 10)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		o, _ := q.Dequeue()
		if o.ID != fmt.Sprintf("o%d", i) {
			t.Fatalf("position %d: got %s", i, o.ID)
		}
	}
}

func TestQueueExitsOutrankEntries(t *testing.T) {
	q := NewQueue()
	_ = q.Enqueue(order("entry", models.PriorityEntryBase))
	_ = q.Enqueue(order("exit", models.PriorityExit))
	o, _ := q.Dequeue()
	if o.ID != "exit" {
		t.Fatalf("expected exit first, got %s", o.ID)
	}
}

func TestQueueCloseUnblocksAndRefusesIntake(t *testing.T) {
	q := NewQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected closed dequeue to report false")
		}
	case <-time.After(time.Second):
		t.Fatalf("dequeue did not unblock")
	}
	if err := q.Enqueue(order("late", 1)); err != ErrQueueClosed {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestRetryPolicyDelays(t *testing.T) {
	p := RetryPolicy{MaxRetries: 4, BaseBackoff: 500 * time.Millisecond, MaxBackoff: 8 * time.Second}
	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second, // capped
	}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
	if p.Exhausted(3) {
		t.Fatalf("3 retries with budget 4 not exhausted")
	}
	if !p.Exhausted(4) {
		t.Fatalf("4 retries with budget 4 exhausted")
	}
}
