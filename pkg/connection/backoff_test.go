package connection

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoffWithConfig(DefaultBackoffConfig())

		expected := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			32 * time.Second,
			MaxBackoff,
			MaxBackoff,
		}
		for i, exp := range expected {
			base := b.Current()
			_ = b.Next()

			if base != exp {
				t.Errorf("Attempt %d: base = %v, want %v", i, base, exp)
			}
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		b := NewBackoffWithConfig(DefaultBackoffConfig())

		samples := make([]time.Duration, 20)
		for i := range samples {
			samples[i] = b.Peek()
		}

		upper := time.Duration(float64(InitialBackoff) * (1 + JitterFactor))
		for i, s := range samples {
			if s < InitialBackoff || s > upper {
				t.Errorf("Sample %d: %v out of range [%v, %v]", i, s, InitialBackoff, upper)
			}
		}

		allSame := true
		for i := 1; i < len(samples); i++ {
			if samples[i] != samples[0] {
				allSame = false
				break
			}
		}
		if allSame {
			t.Error("All jittered samples are identical")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoffWithConfig(DefaultBackoffConfig())
		for range 5 {
			b.Next()
		}

		if b.Current() <= InitialBackoff {
			t.Error("Backoff should have increased")
		}

		b.Reset()

		if b.Current() != InitialBackoff {
			t.Errorf("Current() = %v after reset, want %v", b.Current(), InitialBackoff)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset, want 0", b.Attempts())
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial:    100 * time.Millisecond,
			Max:        500 * time.Millisecond,
			Multiplier: 2.0,
		})

		expected := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			500 * time.Millisecond,
			500 * time.Millisecond,
		}
		for i, exp := range expected {
			if got := b.Next(); got != exp {
				t.Errorf("Attempt %d: Next() = %v, want %v", i, got, exp)
			}
		}
	})

	t.Run("JitterNeverExceedsMax", func(t *testing.T) {
		b := NewBackoffWithConfig(DefaultBackoffConfig())
		for range 10 {
			b.Next()
		}
		for i := range 50 {
			if got := b.Next(); got > MaxBackoff {
				t.Fatalf("Sample %d: Next() = %v, above max %v", i, got, MaxBackoff)
			}
			if got := b.Peek(); got > MaxBackoff {
				t.Fatalf("Sample %d: Peek() = %v, above max %v", i, got, MaxBackoff)
			}
		}
	})

	t.Run("ZeroConfigUsesDefaults", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{})
		if b.Current() != InitialBackoff {
			t.Errorf("Current() = %v, want %v", b.Current(), InitialBackoff)
		}
		if got := b.Peek(); got != InitialBackoff {
			t.Errorf("Peek() = %v, want no jitter", got)
		}
	})
}

func TestBackoffWait(t *testing.T) {
	t.Run("Elapses", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: 10 * time.Millisecond})

		start := time.Now()
		if err := b.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() = %v", err)
		}
		if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
			t.Errorf("Wait returned after %v", elapsed)
		}
		if b.Attempts() != 1 {
			t.Errorf("Attempts() = %d, want 1", b.Attempts())
		}
	})

	t.Run("Interrupted", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: time.Hour})
		cause := errors.New("shutting down")

		ctx, cancel := context.WithCancelCause(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel(cause)
		}()

		done := make(chan error, 1)
		go func() { done <- b.Wait(ctx) }()

		select {
		case err := <-done:
			if !errors.Is(err, cause) {
				t.Errorf("Wait() = %v, want %v", err, cause)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Wait did not return after cancel")
		}
	})
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateDisconnected, StateNegotiating, true},
		{StateDisconnected, StateStreaming, false},
		{StateNegotiating, StateSubscribing, true},
		{StateNegotiating, StateStreaming, false},
		{StateNegotiating, StateDisconnected, true},
		{StateSubscribing, StateStreaming, true},
		{StateSubscribing, StateReconnecting, true},
		{StateStreaming, StateReconnecting, true},
		{StateStreaming, StateNegotiating, false},
		{StateStreaming, StateDisconnected, false},
		{StateReconnecting, StateNegotiating, true},
		{StateReconnecting, StateStreaming, false},
		{StateStreaming, StateClosed, true},
		{StateReconnecting, StateClosed, true},
		{StateClosed, StateNegotiating, false},
		{StateClosed, StateDisconnected, false},
	}

	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	names := map[State]string{
		StateDisconnected: "DISCONNECTED",
		StateNegotiating:  "NEGOTIATING",
		StateSubscribing:  "SUBSCRIBING",
		StateStreaming:    "STREAMING",
		StateReconnecting: "RECONNECTING",
		StateClosed:       "CLOSED",
		State(99):         "UNKNOWN",
	}
	for s, want := range names {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
