package grpcapi

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"kopiadmin/backend/internal/domain"
	"kopiadmin/backend/internal/ledger"
	"kopiadmin/backend/internal/service"
	"kopiadmin/backend/internal/store"
)

type TokenParser interface {
	ParseToken(token string) (domain.Actor, error)
}

// Server exposes the transaction recorder and receipt grouper over gRPC.
type Server struct {
	svc *service.Service
}

var _ InventoryServer = (*Server)(nil)

func NewServer(svc *service.Service) *Server {
	return &Server{svc: svc}
}

// NewGRPCServer builds a grpc.Server with logging and bearer-token auth and
// registers the inventory service on it.
func NewGRPCServer(svc *service.Service, tokens TokenParser, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(logUnary, authUnary(tokens)))
	server := grpc.NewServer(opts...)
	RegisterInventoryServer(server, NewServer(svc))
	return server
}

func (s *Server) RecordIncrease(ctx context.Context, req *RecordRequest) (*RecordResponse, error) {
	quantity, err := ledger.ParseQuantity(req.Quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	id, err := s.svc.RecordIncrease(ctx, req.ProductID, quantity, req.Note)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RecordResponse{TransactionID: id}, nil
}

func (s *Server) RecordDecrease(ctx context.Context, req *RecordRequest) (*RecordResponse, error) {
	quantity, err := ledger.ParseQuantity(req.Quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	id, err := s.svc.RecordDecrease(ctx, req.ProductID, quantity, req.Note)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RecordResponse{TransactionID: id}, nil
}

func (s *Server) RecordAdjust(ctx context.Context, req *RecordRequest) (*RecordResponse, error) {
	quantity, err := ledger.ParseQuantity(req.Quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	direction := domain.Direction(strings.ToUpper(strings.TrimSpace(req.Direction)))
	id, err := s.svc.RecordAdjust(ctx, req.ProductID, direction, quantity, req.Note)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RecordResponse{TransactionID: id}, nil
}

func (s *Server) ListReceipts(ctx context.Context, req *ListReceiptsRequest) (*ListReceiptsResponse, error) {
	receipts, err := s.svc.ListReceipts(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	if req.Limit > 0 && len(receipts) > req.Limit {
		receipts = receipts[:req.Limit]
	}
	return &ListReceiptsResponse{Receipts: receipts}, nil
}

func (s *Server) GetReceiptLines(ctx context.Context, req *GetReceiptLinesRequest) (*GetReceiptLinesResponse, error) {
	lines, err := s.svc.GetReceiptLines(ctx, req.ReceiptID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetReceiptLinesResponse{Lines: lines}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidQuantity), errors.Is(err, store.ErrInvalidTransaction):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, store.ErrStoreUnavailable):
		log.Printf("[grpcapi] ERROR: store unavailable: %v", err)
		return status.Error(codes.Unavailable, "store unavailable, retry later")
	default:
		log.Printf("[grpcapi] ERROR: internal error: %v", err)
		return status.Error(codes.Internal, "internal server error")
	}
}

func authUnary(tokens TokenParser) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get("authorization")
		if len(values) == 0 || !strings.HasPrefix(strings.ToLower(values[0]), "bearer ") {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		actor, err := tokens.ParseToken(strings.TrimSpace(values[0][len("Bearer "):]))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(service.WithActor(ctx, actor), req)
	}
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	startedAt := time.Now()
	resp, err := handler(ctx, req)
	log.Printf("GRPC %s %s %s", info.FullMethod, status.Code(err), time.Since(startedAt))
	return resp, err
}
