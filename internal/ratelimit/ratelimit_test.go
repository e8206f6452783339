package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestDisabledLimiterNeverBlocks(t *testing.T) {
	l := New(0)
	if l.Enabled() {
		t.Fatal("maxRPS<=0 must disable the limiter")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait() on disabled limiter = %v, want nil", err)
	}
}

func TestEnabledLimiterAdmitsFirstRequest(t *testing.T) {
	l := New(1000) // generous but non-zero rate
	if !l.Enabled() {
		t.Fatal("maxRPS>0 must enable the limiter")
	}
	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first Wait() = %v, want nil", err)
	}
}

func TestLimiterRespectsCancellation(t *testing.T) {
	l := New(0.001) // effectively never refills within the test window
	_ = l.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("Wait() on exhausted limiter with short deadline should return an error")
	}
}
