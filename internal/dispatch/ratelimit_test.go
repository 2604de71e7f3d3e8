package dispatch

import (
	"context"
	"testing"
	"time"
)

func TestSpawnLimiterAllowsBurst(t *testing.T) {
	l := NewSpawnLimiter(1, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("Allow() #%d = false, want true within burst", i)
		}
	}
	if l.Allow() {
		t.Fatalf("Allow() after burst exhausted = true, want false")
	}
}

func TestSpawnLimiterWaitUnblocksAfterInterval(t *testing.T) {
	l := NewSpawnLimiter(100, 1)
	l.Allow() // consume the single burst token

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
}

func TestSpawnLimiterWaitRespectsCancellation(t *testing.T) {
	l := NewSpawnLimiter(0.001, 1)
	l.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatalf("Wait succeeded, want context deadline error")
	}
}
