package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"pcbuilder/internal/builder"
	"pcbuilder/internal/domain"
	"pcbuilder/internal/store"
)

// BuildServiceName is the fully qualified gRPC service name.
const BuildServiceName = "pcbuilder.v1.BuildService"

const (
	buildFullMethod      = "/" + BuildServiceName + "/Build"
	getProductFullMethod = "/" + BuildServiceName + "/GetProduct"
)

// BuildServiceServer is the server API for pcbuilder.v1.BuildService.
// Messages are google.protobuf.Struct documents with the same shape as the
// HTTP JSON bodies.
type BuildServiceServer interface {
	Build(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// BuildServiceDesc describes pcbuilder.v1.BuildService for grpc.Server.
var BuildServiceDesc = grpc.ServiceDesc{
	ServiceName: BuildServiceName,
	HandlerType: (*BuildServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Build", Handler: buildServiceBuildHandler},
		{MethodName: "GetProduct", Handler: buildServiceGetProductHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pcbuilder/v1/build_service.proto",
}

// RegisterBuildServiceServer registers srv on s.
func RegisterBuildServiceServer(s grpc.ServiceRegistrar, srv BuildServiceServer) {
	s.RegisterService(&BuildServiceDesc, srv)
}

func buildServiceBuildHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BuildServiceServer).Build(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: buildFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BuildServiceServer).Build(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func buildServiceGetProductHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BuildServiceServer).GetProduct(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getProductFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BuildServiceServer).GetProduct(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// BuildServiceClient is a client for pcbuilder.v1.BuildService.
type BuildServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBuildServiceClient(cc grpc.ClientConnInterface) *BuildServiceClient {
	return &BuildServiceClient{cc: cc}
}

func (c *BuildServiceClient) Build(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, buildFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BuildServiceClient) GetProduct(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getProductFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GRPCHandler implements BuildServiceServer.
type GRPCHandler struct {
	builds       BuildRunner
	productStore store.ProductStorer
}

// NewGRPCHandler creates a new GRPCHandler.
func NewGRPCHandler(b BuildRunner, ps store.ProductStorer) *GRPCHandler {
	return &GRPCHandler{
		builds:       b,
		productStore: ps,
	}
}

var _ BuildServiceServer = (*GRPCHandler)(nil)

// --- Helper: Error Mapping ---
func mapErrorToGrpcStatus(err error, resourceName string, resourceID any) error {
	if err == nil {
		return nil
	}

	var unsat *builder.UnsatisfiableError
	switch {
	case errors.Is(err, store.ErrProductNotFound), errors.Is(err, store.ErrCategoryNotFound):
		return status.Errorf(codes.NotFound, "%s %v not found", resourceName, resourceID)
	case errors.Is(err, domain.ErrInvalidComponentType):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &unsat):
		return status.Error(codes.FailedPrecondition, unsat.Error())
	default:
		log.Error().Err(err).Str("resource", resourceName).Interface("id", resourceID).Msg("gRPC request failed")
		return status.Errorf(codes.Internal, "Failed to process request for %s %v", resourceName, resourceID)
	}
}

// --- gRPC Methods Implementation ---

func (s *GRPCHandler) Build(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := buildRequestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	log.Debug().Float64("budget", req.Budget).Str("purpose", req.Purpose).Msg("Received gRPC Build request")

	result, err := s.builds.Build(ctx, req)
	if err != nil {
		return nil, mapErrorToGrpcStatus(err, "build", req.Purpose)
	}

	out, err := toStruct(result)
	if err != nil {
		log.Error().Err(err).Str("build_id", result.ID.String()).Msg("Failed to convert build result")
		return nil, status.Errorf(codes.Internal, "Failed to process build %s", result.ID)
	}
	return out, nil
}

func (s *GRPCHandler) GetProduct(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	asin := strings.TrimSpace(in.GetFields()["asin"].GetStringValue())
	if asin == "" {
		return nil, status.Error(codes.InvalidArgument, "asin is required")
	}

	product, err := s.productStore.GetProductByASIN(ctx, asin)
	if err != nil {
		return nil, mapErrorToGrpcStatus(err, "product", asin)
	}

	out, err := toStruct(product)
	if err != nil {
		log.Error().Err(err).Str("asin", asin).Msg("Failed to convert product")
		return nil, status.Errorf(codes.Internal, "Failed to process product %s", asin)
	}
	types := make([]any, 0, len(domain.BuildOrder))
	for _, ct := range product.ComponentTypes() {
		types = append(types, string(ct))
	}
	list, err := structpb.NewList(types)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "Failed to process product %s", asin)
	}
	out.Fields["component_types"] = structpb.NewListValue(list)
	return out, nil
}

// --- Helper Functions for Conversion ---

func buildRequestFromStruct(in *structpb.Struct) (builder.Request, error) {
	fields := in.GetFields()
	req := builder.Request{
		Budget:  fields["budget"].GetNumberValue(),
		Purpose: fields["purpose"].GetStringValue(),
	}
	if req.Budget <= 0 {
		return builder.Request{}, errors.New("budget must be a positive number")
	}

	overrides := fields["overrides"].GetStructValue().GetFields()
	if len(overrides) > 0 {
		req.Overrides = make(map[domain.ComponentType]string, len(overrides))
		for key, value := range overrides {
			ct, err := domain.ParseComponentType(key)
			if err != nil {
				return builder.Request{}, err
			}
			asin, ok := value.GetKind().(*structpb.Value_StringValue)
			if !ok || asin.StringValue == "" {
				return builder.Request{}, fmt.Errorf("override for %s must be a non-empty ASIN string", ct)
			}
			req.Overrides[ct] = asin.StringValue
		}
	}
	return req, nil
}

// toStruct converts v through its JSON form so gRPC and HTTP payloads match.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
