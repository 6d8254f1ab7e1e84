package backoff

import (
	"testing"
	"time"
)

func TestDelaySequence(t *testing.T) {
	b := New(time.Second, 200*time.Second, 2, 0)
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, w := range want {
		d, ok := b.NextDelay()
		if !ok {
			t.Fatalf("delay %d: unexpected exhaustion", i)
		}
		if d != w {
			t.Fatalf("delay %d = %v, want %v", i, d, w)
		}
	}
}

func TestDelayCap(t *testing.T) {
	b := New(100*time.Second, 200*time.Second, 2, 0)
	want := []time.Duration{100 * time.Second, 200 * time.Second, 200 * time.Second}
	for i, w := range want {
		d, ok := b.NextDelay()
		if !ok {
			t.Fatalf("delay %d: unexpected exhaustion", i)
		}
		if d != w {
			t.Fatalf("delay %d = %v, want %v", i, d, w)
		}
	}
}

func TestMaxAttempts(t *testing.T) {
	b := New(time.Second, 200*time.Second, 2, 3)
	for i := 0; i < 3; i++ {
		if _, ok := b.NextDelay(); !ok {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if _, ok := b.NextDelay(); ok {
		t.Fatal("fourth attempt should be exhausted")
	}
	if !b.Exhausted() {
		t.Fatal("backoff should report exhausted")
	}
}

func TestReset(t *testing.T) {
	b := New(time.Second, 200*time.Second, 2, 2)
	b.NextDelay()
	b.NextDelay()
	if !b.Exhausted() {
		t.Fatal("expected exhaustion after two attempts")
	}
	b.Reset()
	if b.Exhausted() {
		t.Fatal("reset must clear exhaustion")
	}
	d, ok := b.NextDelay()
	if !ok || d != time.Second {
		t.Fatalf("reset must restore the initial delay, got %v ok=%v", d, ok)
	}
}

func TestMultiplierClamp(t *testing.T) {
	b := New(time.Second, 10*time.Second, 0.5, 0)
	first, _ := b.NextDelay()
	second, _ := b.NextDelay()
	if second < first {
		t.Fatalf("delays must not shrink: %v then %v", first, second)
	}
}
