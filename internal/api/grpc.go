package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"vantage/internal/backtest"
	"vantage/internal/domain"
)

// Backtester wire names. Messages are google.protobuf.Struct so no generated
// stubs are needed: requests carry symbol, window, alt_window, days and
// use_real; responses carry the BacktestResult JSON fields.
const (
	BacktesterServiceName = "vantage.v1.Backtester"
	BacktesterRunMethod   = "/vantage.v1.Backtester/Run"
)

// BacktesterServer is the server API for the Backtester service.
type BacktesterServer interface {
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func backtesterRunHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktesterServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: BacktesterRunMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktesterServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// BacktesterServiceDesc is the grpc.ServiceDesc for the Backtester service.
var BacktesterServiceDesc = grpc.ServiceDesc{
	ServiceName: BacktesterServiceName,
	HandlerType: (*BacktesterServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Run",
			Handler:    backtesterRunHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vantage/v1/backtester.proto",
}

// RegisterBacktesterServer registers srv on s.
func RegisterBacktesterServer(s grpc.ServiceRegistrar, srv BacktesterServer) {
	s.RegisterService(&BacktesterServiceDesc, srv)
}

// BacktesterClient is the client API for the Backtester service.
type BacktesterClient struct {
	cc grpc.ClientConnInterface
}

// NewBacktesterClient wraps cc.
func NewBacktesterClient(cc grpc.ClientConnInterface) *BacktesterClient {
	return &BacktesterClient{cc: cc}
}

// Run invokes Backtester/Run.
func (c *BacktesterClient) Run(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, BacktesterRunMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// BacktestService: the Backtester implementation over backtest.Service.
// ---------------------------------------------------------------------------

// BacktestService serves Backtester/Run from a backtest.Service.
type BacktestService struct {
	svc      *backtest.Service
	defaults backtest.Defaults
}

// NewBacktestService creates a BacktestService. Fields missing from a request
// take the given defaults.
func NewBacktestService(svc *backtest.Service, defaults backtest.Defaults) *BacktestService {
	return &BacktestService{svc: svc, defaults: defaults}
}

// Run decodes the request struct, runs the backtest and encodes the result.
func (b *BacktestService) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := RequestFromStruct(in, b.defaults)
	if err != nil {
		return nil, statusFromError(err)
	}
	res, err := b.svc.Run(ctx, req)
	if err != nil {
		return nil, statusFromError(err)
	}
	out, err := ResultToStruct(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding result: %v", err)
	}
	return out, nil
}

// RequestFromStruct reads a backtest request from s. Absent fields take
// defaults; fields of the wrong type are an invalid parameter.
func RequestFromStruct(s *structpb.Struct, defaults backtest.Defaults) (backtest.Request, error) {
	req := defaults.Request()
	fields := s.GetFields()

	if v, ok := fields["symbol"]; ok {
		sv, isStr := v.GetKind().(*structpb.Value_StringValue)
		if !isStr {
			return req, fmt.Errorf("%w: symbol must be a string", domain.ErrInvalidParameter)
		}
		if sv.StringValue != "" {
			req.Symbol = sv.StringValue
		}
	}
	for name, dst := range map[string]*int{
		"window":     &req.Window,
		"alt_window": &req.AltWindow,
		"days":       &req.Days,
	} {
		v, ok := fields[name]
		if !ok {
			continue
		}
		n, err := intValue(name, v)
		if err != nil {
			return req, err
		}
		*dst = n
	}
	if v, ok := fields["use_real"]; ok {
		bv, isBool := v.GetKind().(*structpb.Value_BoolValue)
		if !isBool {
			return req, fmt.Errorf("%w: use_real must be a boolean", domain.ErrInvalidParameter)
		}
		req.UseReal = bv.BoolValue
	}
	return req, nil
}

func intValue(name string, v *structpb.Value) (int, error) {
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidParameter, name)
	}
	f := nv.NumberValue
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s %v is not an integer", domain.ErrInvalidParameter, name, f)
	}
	return int(f), nil
}

// ResultToStruct encodes res with its JSON field names.
func ResultToStruct(res *domain.BacktestResult) (*structpb.Struct, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// ResultFromStruct decodes a Backtester/Run response.
func ResultFromStruct(s *structpb.Struct) (*domain.BacktestResult, error) {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, err
	}
	var res domain.BacktestResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// statusFromError maps service errors onto gRPC status codes.
func statusFromError(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrInsufficientData):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
