package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wyfcoding/paymentrisk/pkg/logger"
	"github.com/wyfcoding/paymentrisk/pkg/metrics"
)

const (
	TaskEvent        = "event"
	TaskNotification = "notification"
)

// TaskOutcome 后台任务执行结果
type TaskOutcome struct {
	Kind     string
	AlertID  string
	Err      error
	Duration time.Duration
}

// BackgroundRunner 执行与请求解耦的后台任务（事件发布、高危通知）。
// 每个任务使用脱离请求取消的 context 并带超时；结果统一记录日志与指标，
// 并在设置了观察者时投递到观察者 channel。
type BackgroundRunner struct {
	timeout  time.Duration
	metrics  *metrics.Metrics
	observer chan<- TaskOutcome

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewBackgroundRunner 创建后台任务执行器，observer 可为 nil
func NewBackgroundRunner(timeout time.Duration, m *metrics.Metrics, observer chan<- TaskOutcome) *BackgroundRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BackgroundRunner{timeout: timeout, metrics: m, observer: observer}
}

// Go 提交任务；执行器关闭后提交的任务直接记为失败
func (r *BackgroundRunner) Go(ctx context.Context, kind, alertID string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.finish(ctx, TaskOutcome{Kind: kind, AlertID: alertID, Err: fmt.Errorf("background runner closed")})
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	// 保留 trace 等上下文值，但不随请求结束而取消
	detached := context.WithoutCancel(ctx)
	go func() {
		defer r.wg.Done()
		taskCtx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()

		start := time.Now()
		err := runSafely(taskCtx, fn)
		r.finish(detached, TaskOutcome{Kind: kind, AlertID: alertID, Err: err, Duration: time.Since(start)})
	}()
}

func runSafely(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("background task panic: %v", p)
		}
	}()
	return fn(ctx)
}

func (r *BackgroundRunner) finish(ctx context.Context, out TaskOutcome) {
	r.metrics.RecordBackgroundTask(out.Kind, out.Err)
	if out.Err != nil {
		logger.Error(ctx, "background task failed",
			"kind", out.Kind, "alert_id", out.AlertID, "duration", out.Duration, "error", out.Err)
	} else {
		logger.Debug(ctx, "background task completed",
			"kind", out.Kind, "alert_id", out.AlertID, "duration", out.Duration)
	}

	if r.observer == nil {
		return
	}
	select {
	case r.observer <- out:
	default:
		logger.Warn(ctx, "background outcome observer is full, outcome only logged",
			"kind", out.Kind, "alert_id", out.AlertID)
	}
}

// Wait 阻塞直到所有已提交任务完成
func (r *BackgroundRunner) Wait() {
	r.wg.Wait()
}

// Shutdown 拒绝新任务并等待在途任务，ctx 到期时返回错误
func (r *BackgroundRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}
