package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/imulab-x/client-service/internal/models"
	"github.com/imulab-x/client-service/internal/oauth"
)

// LookupClient 是 ClientLookup 的调用端。
type LookupClient struct {
	cc grpc.ClientConnInterface
}

func NewLookupClient(cc grpc.ClientConnInterface) *LookupClient {
	return &LookupClient{cc: cc}
}

// FindRaw 返回服务端原始响应。
func (c *LookupClient) FindRaw(ctx context.Context, id string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, findMethod, wrapperspb.String(id), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Find 查找客户端；服务端返回的失败被还原为 *oauth.Error。
func (c *LookupClient) Find(ctx context.Context, id string, opts ...grpc.CallOption) (models.ClientPayload, error) {
	st, err := c.FindRaw(ctx, id, opts...)
	if err != nil {
		return models.ClientPayload{}, err
	}
	return DecodeResult(st)
}

// DecodeResult 解析 Find 的响应结构。
func DecodeResult(st *structpb.Struct) (models.ClientPayload, error) {
	fields := st.GetFields()
	if !fields["success"].GetBoolValue() {
		f := fields["failure"].GetStructValue().GetFields()
		return models.ClientPayload{}, &oauth.Error{
			Kind:        kindForStatus(int(f["status"].GetNumberValue())),
			Status:      int(f["status"].GetNumberValue()),
			Code:        f["error"].GetStringValue(),
			Description: f["error_description"].GetStringValue(),
		}
	}
	b, err := fields["client"].GetStructValue().MarshalJSON()
	if err != nil {
		return models.ClientPayload{}, fmt.Errorf("encode client struct: %w", err)
	}
	var p models.ClientPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return models.ClientPayload{}, fmt.Errorf("decode client payload: %w", err)
	}
	return p, nil
}

func kindForStatus(status int) oauth.Kind {
	switch status {
	case 404:
		return oauth.KindNotFound
	case 400:
		return oauth.KindUnmet
	default:
		return oauth.KindServerError
	}
}
