package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitForUsesSleep(t *testing.T) {
	original := sleep
	defer func() { sleep = original }()

	var slept time.Duration
	sleep = func(d time.Duration) { slept = d }

	if err := WaitFor(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slept != 5*time.Second {
		t.Fatalf("expected 5s sleep, got %v", slept)
	}
}

func TestWaitForHonoursCancellation(t *testing.T) {
	original := sleep
	defer func() { sleep = original }()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	sleep = func(time.Duration) {
		close(started)
		<-release
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("sleep was never started")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
	}

	for _, tt := range tests {
		if got := Backoff(5*time.Second, 2, tt.attempt); got != tt.want {
			t.Errorf("Backoff(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	if got := Backoff(time.Second, 0, 3); got != time.Second {
		t.Fatalf("multiplier below 1 should keep the delay flat, got %v", got)
	}
}

func TestTruncateForLog(t *testing.T) {
	tests := []struct {
		input string
		limit int
		want  string
	}{
		{"resume text", 0, ""},
		{"short", 10, "short"},
		{"  padded prompt  ", 6, "padded..."},
		{"João Conceição", 4, "João..."},
	}

	for _, tt := range tests {
		if got := TruncateForLog(tt.input, tt.limit); got != tt.want {
			t.Errorf("TruncateForLog(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.want)
		}
	}
}
