package llmrouter

import (
	"context"
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: 10 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicyDelayDefaults(t *testing.T) {
	var p RetryPolicy
	if got := p.Delay(0); got != time.Second {
		t.Errorf("zero policy Delay(0) = %v, want 1s", got)
	}
}

func TestSleepOrCancel(t *testing.T) {
	if err := sleepOrCancel(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepOrCancel(ctx, time.Minute)
	if CodeOf(err) != CodeCancelled {
		t.Fatalf("expected CANCELLED, got %v", err)
	}
}
