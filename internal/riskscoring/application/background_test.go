package application

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackgroundRunnerOutcomes(t *testing.T) {
	outcomes := make(chan TaskOutcome, 4)
	r := NewBackgroundRunner(50*time.Millisecond, nil, outcomes)

	ctx, cancel := context.WithCancel(context.Background())
	r.Go(ctx, TaskEvent, "A1", func(ctx context.Context) error {
		// 请求取消不应影响后台任务
		time.Sleep(10 * time.Millisecond)
		return ctx.Err()
	})
	cancel()
	r.Go(context.Background(), TaskNotification, "A2", func(context.Context) error { panic("boom") })
	r.Go(context.Background(), TaskEvent, "A3", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r.Wait()

	got := map[string]error{}
	for len(outcomes) > 0 {
		out := <-outcomes
		got[out.AlertID] = out.Err
	}
	if got["A1"] != nil {
		t.Fatalf("detached task saw cancellation: %v", got["A1"])
	}
	if got["A2"] == nil {
		t.Fatal("panic was not reported as failure")
	}
	if !errors.Is(got["A3"], context.DeadlineExceeded) {
		t.Fatalf("timeout not enforced: %v", got["A3"])
	}
}

func TestBackgroundRunnerShutdown(t *testing.T) {
	outcomes := make(chan TaskOutcome, 2)
	r := NewBackgroundRunner(time.Second, nil, outcomes)

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	called := false
	r.Go(context.Background(), TaskEvent, "late", func(context.Context) error {
		called = true
		return nil
	})
	r.Wait()
	if called {
		t.Fatal("task ran after shutdown")
	}
	if out := <-outcomes; out.Err == nil {
		t.Fatal("rejected task should report an error")
	}
}
