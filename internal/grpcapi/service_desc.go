package grpcapi

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"

	"kopiadmin/backend/internal/domain"
)

const ServiceName = "kopiadmin.inventory.v1.Inventory"

type RecordRequest struct {
	ProductID string      `json:"product_id"`
	Quantity  json.Number `json:"quantity"`
	Direction string      `json:"direction,omitempty"`
	Note      string      `json:"note,omitempty"`
}

type RecordResponse struct {
	TransactionID string `json:"transaction_id"`
}

type ListReceiptsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type ListReceiptsResponse struct {
	Receipts []domain.ReceiptSummary `json:"receipts"`
}

type GetReceiptLinesRequest struct {
	ReceiptID string `json:"receipt_id"`
}

type GetReceiptLinesResponse struct {
	Lines []domain.ReceiptLine `json:"lines"`
}

type InventoryServer interface {
	RecordIncrease(context.Context, *RecordRequest) (*RecordResponse, error)
	RecordDecrease(context.Context, *RecordRequest) (*RecordResponse, error)
	RecordAdjust(context.Context, *RecordRequest) (*RecordResponse, error)
	ListReceipts(context.Context, *ListReceiptsRequest) (*ListReceiptsResponse, error)
	GetReceiptLines(context.Context, *GetReceiptLinesRequest) (*GetReceiptLinesResponse, error)
}

// unary builds a method descriptor that decodes Req, runs the interceptor
// chain and dispatches to call.
func unary[Req any, Resp any](name string, call func(InventoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(InventoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(InventoryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("RecordIncrease", InventoryServer.RecordIncrease),
		unary("RecordDecrease", InventoryServer.RecordDecrease),
		unary("RecordAdjust", InventoryServer.RecordAdjust),
		unary("ListReceipts", InventoryServer.ListReceipts),
		unary("GetReceiptLines", InventoryServer.GetReceiptLines),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kopiadmin/inventory/v1/inventory.json",
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the inventory service over a connection using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) RecordIncrease(ctx context.Context, in *RecordRequest, opts ...grpc.CallOption) (*RecordResponse, error) {
	return invoke[RecordResponse](ctx, c.cc, "RecordIncrease", in, opts)
}

func (c *Client) RecordDecrease(ctx context.Context, in *RecordRequest, opts ...grpc.CallOption) (*RecordResponse, error) {
	return invoke[RecordResponse](ctx, c.cc, "RecordDecrease", in, opts)
}

func (c *Client) RecordAdjust(ctx context.Context, in *RecordRequest, opts ...grpc.CallOption) (*RecordResponse, error) {
	return invoke[RecordResponse](ctx, c.cc, "RecordAdjust", in, opts)
}

func (c *Client) ListReceipts(ctx context.Context, in *ListReceiptsRequest, opts ...grpc.CallOption) (*ListReceiptsResponse, error) {
	return invoke[ListReceiptsResponse](ctx, c.cc, "ListReceipts", in, opts)
}

func (c *Client) GetReceiptLines(ctx context.Context, in *GetReceiptLinesRequest, opts ...grpc.CallOption) (*GetReceiptLinesResponse, error) {
	return invoke[GetReceiptLinesResponse](ctx, c.cc, "GetReceiptLines", in, opts)
}
