package rpc

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Server 封装 gRPC 服务器：查找服务、标准健康服务与访问日志拦截器。
type Server struct {
	gs      *grpc.Server
	health  *health.Server
	serving atomic.Bool
}

func NewServer(lookup *LookupServer, opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(accessLog)}, opts...)
	gs := grpc.NewServer(opts...)
	hs := health.NewServer()
	lookup.Register(gs)
	healthpb.RegisterHealthServer(gs, hs)
	return &Server{gs: gs, health: hs}
}

// Serve 在 lis 上阻塞服务，直至 Stop 被调用。
func (s *Server) Serve(lis net.Listener) error {
	s.serving.Store(true)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	defer s.serving.Store(false)
	log.WithField("addr", lis.Addr().String()).Info("grpc lookup server listening")
	err := s.gs.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop 先标记不可用，再优雅停止；超时后强制关闭。
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.gs.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.gs.Stop()
	}
}

// Check 供 HTTP 健康检查使用。
func (s *Server) Check(context.Context) error {
	if !s.serving.Load() {
		return errors.New("grpc server not serving")
	}
	return nil
}

func accessLog(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	entry := log.WithFields(log.Fields{
		"method":     info.FullMethod,
		"code":       status.Code(err).String(),
		"latency_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("grpc call failed")
	} else {
		entry.Debug("grpc call completed")
	}
	return resp, err
}
