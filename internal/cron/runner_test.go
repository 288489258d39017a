package cronrunner

import (
	"context"
	"testing"
	"time"
)

type ctxKey struct{}

func TestRunnerPassesBaseContext(t *testing.T) {
	base := context.WithValue(context.Background(), ctxKey{}, "analytics")
	r := New(nil, base)
	got := make(chan any, 1)
	if _, err := r.Add("@every 1s", func(ctx context.Context) {
		select {
		case got <- ctx.Value(ctxKey{}):
		default:
		}
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	r.Start()
	defer r.Stop()

	select {
	case v := <-got:
		if v != "analytics" {
			t.Fatalf("ctx value=%v want=analytics", v)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("job never ran")
	}
}

func TestRunnerRejectsBadSpec(t *testing.T) {
	r := New(nil, context.Background())
	if _, err := r.Add("every tuesday", func(context.Context) {}); err == nil {
		t.Fatalf("expected parse error")
	}
	if len(r.Entries()) != 0 {
		t.Fatalf("entries=%d want=0", len(r.Entries()))
	}
}

func TestRunnerRecoversPanics(t *testing.T) {
	r := New(nil, context.Background())
	done := make(chan struct{}, 2)
	if _, err := r.Add("@every 1s", func(context.Context) {
		select {
		case done <- struct{}{}:
		default:
		}
		panic("boom")
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	r.Start()
	defer r.Stop()
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(4 * time.Second):
			t.Fatalf("job stopped after panic, runs=%d", i)
		}
	}
}
