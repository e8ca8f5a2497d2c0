package debounce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGate_CollapsesBurst(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var got []int

	g := New(50*time.Millisecond, func(v int) {
		calls.Add(1)
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		g.Trigger(i)
	}

	time.Sleep(150 * time.Millisecond)

	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != 9 {
		t.Errorf("got %v, want [9] (last call wins)", got)
	}
}

func TestGate_SpacedCalls(t *testing.T) {
	var calls atomic.Int32
	g := NewFunc(30*time.Millisecond, func() { calls.Add(1) })

	g.Trigger(struct{}{})
	time.Sleep(100 * time.Millisecond)
	g.Trigger(struct{}{})
	time.Sleep(100 * time.Millisecond)

	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestGate_Cancel(t *testing.T) {
	var calls atomic.Int32
	g := New(50*time.Millisecond, func(int) { calls.Add(1) })

	g.Trigger(1)
	if !g.Pending() {
		t.Fatal("expected pending after Trigger")
	}
	g.Cancel()
	if g.Pending() {
		t.Fatal("expected no pending call after Cancel")
	}

	time.Sleep(100 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}
}

func TestGate_Flush(t *testing.T) {
	var last atomic.Int32
	var calls atomic.Int32
	g := New(100*time.Millisecond, func(v int) {
		calls.Add(1)
		last.Store(int32(v))
	})

	g.Trigger(3)
	g.Trigger(4)
	g.Flush()

	if calls.Load() != 1 || last.Load() != 4 {
		t.Fatalf("calls=%d last=%d, want 1 and 4", calls.Load(), last.Load())
	}

	time.Sleep(150 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("calls after wait = %d, want 1", calls.Load())
	}

	g.Flush()
	if calls.Load() != 1 {
		t.Errorf("flush without pending call ran fn")
	}
}

func TestGate_ZeroWindowIsSynchronous(t *testing.T) {
	var calls int
	g := New(0, func(v int) { calls += v })

	g.Trigger(2)
	g.Trigger(3)

	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
	if g.Pending() {
		t.Error("zero window gate should never be pending")
	}
}
