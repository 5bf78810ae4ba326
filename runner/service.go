package runner

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"web/communityglobe/cluster"
	"web/communityglobe/roster"
)

// Messages travel as JSON under the "json" content subtype.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

const ServiceName = "globe.ViewService"

// ViewServiceServer is implemented by *Runner.
type ViewServiceServer interface {
	LoadRoster(context.Context, *LoadRosterRequest) (*LoadRosterResponse, error)
	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
	Select(context.Context, *SelectRequest) (*Frame, error)
	SetFilters(context.Context, *SetFiltersRequest) (*Frame, error)
	Expand(context.Context, *PointRequest) (*Frame, error)
	ClusterDetails(context.Context, *PointRequest) (*cluster.Details, error)
	Statistics(context.Context, *SessionRequest) (*cluster.Statistics, error)
	FilterOptions(context.Context, *SessionRequest) (*roster.FilterOptions, error)
	SaveSnapshot(context.Context, *SessionRequest) (*cluster.SnapshotInfo, error)
}

// unaryHandler adapts one ViewServiceServer method to a grpc.MethodHandler.
func unaryHandler[Req, Resp any](method string, call func(ViewServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ViewServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ViewServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ViewService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ViewServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LoadRoster", Handler: unaryHandler("LoadRoster", ViewServiceServer.LoadRoster)},
		{MethodName: "ListSessions", Handler: unaryHandler("ListSessions", ViewServiceServer.ListSessions)},
		{MethodName: "Select", Handler: unaryHandler("Select", ViewServiceServer.Select)},
		{MethodName: "SetFilters", Handler: unaryHandler("SetFilters", ViewServiceServer.SetFilters)},
		{MethodName: "Expand", Handler: unaryHandler("Expand", ViewServiceServer.Expand)},
		{MethodName: "ClusterDetails", Handler: unaryHandler("ClusterDetails", ViewServiceServer.ClusterDetails)},
		{MethodName: "Statistics", Handler: unaryHandler("Statistics", ViewServiceServer.Statistics)},
		{MethodName: "FilterOptions", Handler: unaryHandler("FilterOptions", ViewServiceServer.FilterOptions)},
		{MethodName: "SaveSnapshot", Handler: unaryHandler("SaveSnapshot", ViewServiceServer.SaveSnapshot)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "globe/view_service",
}

func RegisterViewServiceServer(s grpc.ServiceRegistrar, srv ViewServiceServer) {
	s.RegisterService(&ViewService_ServiceDesc, srv)
}
