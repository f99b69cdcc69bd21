// Package grpc 暴露 grpc.health.v1，健康状态随就绪检查变化
package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/wyfcoding/paymentrisk/pkg/logger"
	"github.com/wyfcoding/paymentrisk/pkg/middleware"
)

// ServiceName 健康检查中的服务名
const ServiceName = "paymentrisk.riskscoring"

// Check 单项就绪检查
type Check func(ctx context.Context) error

// Server gRPC 服务端与健康状态上报
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	checks map[string]Check
}

// NewServer 创建带日志与恢复拦截器的 gRPC 服务端
func NewServer(checks map[string]Check, opts ...grpc.ServerOption) *Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		middleware.GRPCRecoveryInterceptor(),
		middleware.GRPCLoggingInterceptor(),
	))
	gs := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{grpc: gs, health: hs, checks: checks}
}

// GRPC 底层服务端，供 Serve 使用
func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// Refresh 执行全部检查并更新服务健康状态
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			logger.Warn(ctx, "readiness check failed", "check", name, "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus(ServiceName, st)
	return st
}

// Watch 按 interval 周期刷新，直到 ctx 结束
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.refreshWithTimeout(ctx, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshWithTimeout(ctx, interval)
		}
	}
}

func (s *Server) refreshWithTimeout(ctx context.Context, timeout time.Duration) {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	s.Refresh(checkCtx)
}

// GracefulStop 标记下线并等待进行中的调用结束
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
