package mcphost

import (
	"testing"
)

func TestRollingWindow_Empty(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(10)
	if got := w.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
	if got := w.P50(); got != 0 {
		t.Errorf("P50() = %d, want 0", got)
	}
	if got := w.P99(); got != 0 {
		t.Errorf("P99() = %d, want 0", got)
	}
	if got := w.ErrorRate(); got != 0 {
		t.Errorf("ErrorRate() = %f, want 0", got)
	}
}

func TestRollingWindow_DefaultSize(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(0)
	if w.size != statsWindowSize {
		t.Errorf("size = %d, want %d", w.size, statsWindowSize)
	}
}

func TestRollingWindow_P50(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(10)
	for _, ms := range []int64{10, 20, 30, 40, 50} {
		w.Record(ms, false)
	}
	// Sorted: [10,20,30,40,50] → index 2 → 30.
	if got := w.P50(); got != 30 {
		t.Errorf("P50() = %d, want 30", got)
	}
}

func TestRollingWindow_P99(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(100)
	for i := int64(1); i <= 100; i++ {
		w.Record(i, false)
	}
	got := w.P99()
	if got < 98 || got > 100 {
		t.Errorf("P99() = %d, want in [98,100]", got)
	}
}

func TestRollingWindow_ErrorRate(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(10)
	w.Record(100, false)
	w.Record(100, false)
	w.Record(100, true)
	got := w.ErrorRate()
	if got < 0.3 || got > 0.4 {
		t.Errorf("ErrorRate() = %f, want ~0.333", got)
	}
}

func TestRollingWindow_CountExceedsCapacity(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(5)
	for i := 0; i < 7; i++ {
		w.Record(int64(i*10), false)
	}
	if got := w.Count(); got != 7 {
		t.Errorf("Count() = %d, want 7", got)
	}
}

func TestRollingWindow_RingWraps(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(3)
	w.Record(100, false)
	w.Record(200, false)
	w.Record(300, false)
	// Window full: [100,200,300] → P50 = 200.
	if got := w.P50(); got != 200 {
		t.Errorf("P50() after fill = %d, want 200", got)
	}
	// Overwrite oldest with 400 → [200,300,400] → P50 = 300.
	w.Record(400, false)
	if got := w.P50(); got != 300 {
		t.Errorf("P50() after overwrite = %d, want 300", got)
	}
}

func TestRollingWindow_SingleSample(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(10)
	w.Record(42, false)
	if got := w.P50(); got != 42 {
		t.Errorf("P50() = %d, want 42", got)
	}
	if got := w.P99(); got != 42 {
		t.Errorf("P99() = %d, want 42", got)
	}
}

func TestRollingWindow_Concurrent(t *testing.T) {
	t.Parallel()
	w := newRollingWindow(50)
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func(v int64) {
			for j := 0; j < 20; j++ {
				w.Record(v, j%3 == 0)
			}
			done <- struct{}{}
		}(int64(i * 10))
	}
	for i := 0; i < 5; i++ {
		<-done
	}
	if c := w.Count(); c != 100 {
		t.Errorf("Count() = %d, want 100", c)
	}
}
