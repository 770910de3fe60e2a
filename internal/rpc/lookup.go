package rpc

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/imulab-x/client-service/internal/metrics"
	"github.com/imulab-x/client-service/internal/models"
	"github.com/imulab-x/client-service/internal/oauth"
)

// ServiceName 是查找服务的全限定名。
const ServiceName = "clientregistry.v1.ClientLookup"

const findMethod = "/" + ServiceName + "/Find"

// ClientFinder 按 id 读取客户端记录。
type ClientFinder interface {
	GetClient(ctx context.Context, id string) (models.ClientRecord, error)
}

// LookupServer 实现 ClientLookup/Find：结果（含失败）以 Struct 形式在响应体内返回，
// 只有取消与超时才作为 gRPC 状态返回。并发查找数受信号量限制。
type LookupServer struct {
	finder ClientFinder
	sem    *semaphore.Weighted
}

func NewLookupServer(finder ClientFinder, concurrency int) *LookupServer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &LookupServer{finder: finder, sem: semaphore.NewWeighted(int64(concurrency))}
}

// Register 将查找服务挂到 gRPC 服务器上。
func (s *LookupServer) Register(gs *grpc.Server) {
	gs.RegisterService(&lookupServiceDesc, s)
}

func (s *LookupServer) Find(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		metrics.LookupRequests.WithLabelValues("rejected").Inc()
		return nil, status.FromContextError(err).Err()
	}
	defer s.sem.Release(1)

	rec, err := s.finder.GetClient(ctx, req.GetValue())
	if err != nil {
		oe := oauth.From(err)
		if oe.Kind == oauth.KindServerError {
			log.WithError(err).WithField("client_id", req.GetValue()).Error("client lookup failed")
		}
		metrics.LookupRequests.WithLabelValues(oe.Kind.String()).Inc()
		return failureStruct(oe)
	}
	metrics.LookupRequests.WithLabelValues("ok").Inc()
	return successStruct(rec)
}

func successStruct(rec models.ClientRecord) (*structpb.Struct, error) {
	b, err := json.Marshal(models.NewClientPayload(rec))
	if err != nil {
		return failureStruct(oauth.ServerError("Failed to encode client.", err))
	}
	var client map[string]any
	if err := json.Unmarshal(b, &client); err != nil {
		return failureStruct(oauth.ServerError("Failed to encode client.", err))
	}
	return structpb.NewStruct(map[string]any{
		"success": true,
		"client":  client,
	})
}

func failureStruct(oe *oauth.Error) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"success": false,
		"failure": map[string]any{
			"status":            oe.Status,
			"error":             oe.Code,
			"error_description": oe.Description,
		},
	})
}

// lookupService 是 ServiceDesc 的处理器类型。
type lookupService interface {
	Find(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

var lookupServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*lookupService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Find", Handler: findHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clientregistry/v1/lookup.proto",
}

func findHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(lookupService).Find(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: findMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(lookupService).Find(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
