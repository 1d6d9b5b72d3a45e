package server

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// CompilerServiceServer is the gRPC view of CompilerService.
type CompilerServiceServer interface {
	Compile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// grpcCompilerService adapts CompilerService to plain gRPC, translating
// Connect error codes to gRPC status codes. The two share numbering.
type grpcCompilerService struct {
	svc *CompilerService
}

func (g grpcCompilerService) Compile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	out, err := g.svc.compile(ctx, in)
	return out, grpcError(err)
}

func (g grpcCompilerService) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	out, err := g.svc.run(ctx, in)
	return out, grpcError(err)
}

func grpcError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return status.Error(codes.Code(ce.Code()), ce.Message())
	}
	return status.Error(codes.Unknown, err.Error())
}

// RegisterCompilerService registers svc with a gRPC server.
func RegisterCompilerService(s grpc.ServiceRegistrar, svc *CompilerService) {
	s.RegisterService(&compilerServiceDesc, grpcCompilerService{svc: svc})
}

var compilerServiceDesc = grpc.ServiceDesc{
	ServiceName: CompilerServiceName,
	HandlerType: (*CompilerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compile", Handler: compileHandler},
		{MethodName: "Run", Handler: runHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tmbasic/v1/compiler.proto",
}

func compileHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompilerServiceServer).Compile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CompileProcedure}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CompilerServiceServer).Compile(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CompilerServiceServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunProcedure}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CompilerServiceServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
