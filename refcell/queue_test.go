package refcell

import "testing"

func TestQueuePollReturnsPushedTokens(t *testing.T) {
	q := NewQueue(4)
	q.push(notification{token: 1})
	q.push(notification{token: 2})

	var got []uint64
	n := q.Poll(10, func(tok uint64) { got = append(got, tok) })
	if n != 2 {
		t.Fatalf("Poll drained %d, want 2", n)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("Poll order = %v, want [1 2]", got)
	}
}

func TestQueuePollNeverBlocksWhenEmpty(t *testing.T) {
	q := NewQueue(4)
	n := q.Poll(10, func(uint64) { t.Fatal("callback invoked on empty queue") })
	if n != 0 {
		t.Fatalf("Poll on empty queue drained %d, want 0", n)
	}
}

func TestQueuePollRespectsMax(t *testing.T) {
	q := NewQueue(8)
	for i := uint64(0); i < 8; i++ {
		q.push(notification{token: i})
	}
	n := q.Poll(3, func(uint64) {})
	if n != 3 {
		t.Fatalf("Poll(3) drained %d, want 3", n)
	}
	remaining := q.Poll(100, func(uint64) {})
	if remaining != 5 {
		t.Fatalf("remaining after Poll(3) = %d, want 5", remaining)
	}
}

func TestQueuePushDropsWhenFull(t *testing.T) {
	q := NewQueue(1)
	q.push(notification{token: 1})
	q.push(notification{token: 2}) // dropped, queue full

	n := q.Poll(10, func(uint64) {})
	if n != 1 {
		t.Fatalf("Poll after overflow drained %d, want 1", n)
	}
}
