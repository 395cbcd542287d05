package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "geosession.v1.SessionService"

// SessionServiceServer is the server API for SessionService
type SessionServiceServer interface {
	ReportFix(context.Context, *ReportFixRequest) (*ReportFixResponse, error)
	Tick(context.Context, *TickRequest) (*EventsResponse, error)
	StartTracking(context.Context, *StartTrackingRequest) (*StartTrackingResponse, error)
	CancelTracking(context.Context, *PlayerRequest) (*TelemetryResponse, error)
	ForceClose(context.Context, *ForceCloseRequest) (*EventsResponse, error)
	SetLoad(context.Context, *SetLoadRequest) (*TelemetryResponse, error)
	MarkInside(context.Context, *MarkInsideRequest) (*EventsResponse, error)
	ResetDailyRewards(context.Context, *PlayerRequest) (*TelemetryResponse, error)
	GetTelemetry(context.Context, *PlayerRequest) (*TelemetryResponse, error)
	CreditDistance(context.Context, *CreditDistanceRequest) (*EventsResponse, error)
	EndSession(context.Context, *PlayerRequest) (*TelemetryResponse, error)
	ListTerritories(context.Context, *ListTerritoriesRequest) (*ListTerritoriesResponse, error)
}

// ServiceDesc describes SessionService for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ReportFix", SessionServiceServer.ReportFix),
		unary("Tick", SessionServiceServer.Tick),
		unary("StartTracking", SessionServiceServer.StartTracking),
		unary("CancelTracking", SessionServiceServer.CancelTracking),
		unary("ForceClose", SessionServiceServer.ForceClose),
		unary("SetLoad", SessionServiceServer.SetLoad),
		unary("MarkInside", SessionServiceServer.MarkInside),
		unary("ResetDailyRewards", SessionServiceServer.ResetDailyRewards),
		unary("GetTelemetry", SessionServiceServer.GetTelemetry),
		unary("CreditDistance", SessionServiceServer.CreditDistance),
		unary("EndSession", SessionServiceServer.EndSession),
		unary("ListTerritories", SessionServiceServer.ListTerritories),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterSessionServiceServer registers srv with the gRPC server
func RegisterSessionServiceServer(r grpc.ServiceRegistrar, srv SessionServiceServer) {
	r.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds a method descriptor that decodes Req and calls the server method
func unary[Req, Resp any](method string, call func(SessionServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SessionServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(SessionServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client calls SessionService over a gRPC connection using the JSON codec
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ReportFix sends one raw fix
func (c *Client) ReportFix(ctx context.Context, in *ReportFixRequest, opts ...grpc.CallOption) (*ReportFixResponse, error) {
	return invoke[ReportFixResponse](ctx, c, "ReportFix", in, opts)
}

// Tick advances a player's checkpoint clock
func (c *Client) Tick(ctx context.Context, in *TickRequest, opts ...grpc.CallOption) (*EventsResponse, error) {
	return invoke[EventsResponse](ctx, c, "Tick", in, opts)
}

// StartTracking opens a territory claim
func (c *Client) StartTracking(ctx context.Context, in *StartTrackingRequest, opts ...grpc.CallOption) (*StartTrackingResponse, error) {
	return invoke[StartTrackingResponse](ctx, c, "StartTracking", in, opts)
}

// CancelTracking discards the active claim
func (c *Client) CancelTracking(ctx context.Context, in *PlayerRequest, opts ...grpc.CallOption) (*TelemetryResponse, error) {
	return invoke[TelemetryResponse](ctx, c, "CancelTracking", in, opts)
}

// ForceClose closes the active claim
func (c *Client) ForceClose(ctx context.Context, in *ForceCloseRequest, opts ...grpc.CallOption) (*EventsResponse, error) {
	return invoke[EventsResponse](ctx, c, "ForceClose", in, opts)
}

// SetLoad records the carried load
func (c *Client) SetLoad(ctx context.Context, in *SetLoadRequest, opts ...grpc.CallOption) (*TelemetryResponse, error) {
	return invoke[TelemetryResponse](ctx, c, "SetLoad", in, opts)
}

// MarkInside forwards a platform region entry
func (c *Client) MarkInside(ctx context.Context, in *MarkInsideRequest, opts ...grpc.CallOption) (*EventsResponse, error) {
	return invoke[EventsResponse](ctx, c, "MarkInside", in, opts)
}

// ResetDailyRewards clears the reward ledger
func (c *Client) ResetDailyRewards(ctx context.Context, in *PlayerRequest, opts ...grpc.CallOption) (*TelemetryResponse, error) {
	return invoke[TelemetryResponse](ctx, c, "ResetDailyRewards", in, opts)
}

// GetTelemetry returns the UI snapshot
func (c *Client) GetTelemetry(ctx context.Context, in *PlayerRequest, opts ...grpc.CallOption) (*TelemetryResponse, error) {
	return invoke[TelemetryResponse](ctx, c, "GetTelemetry", in, opts)
}

// CreditDistance credits distance validated outside the session
func (c *Client) CreditDistance(ctx context.Context, in *CreditDistanceRequest, opts ...grpc.CallOption) (*EventsResponse, error) {
	return invoke[EventsResponse](ctx, c, "CreditDistance", in, opts)
}

// EndSession drops the player's in-memory session
func (c *Client) EndSession(ctx context.Context, in *PlayerRequest, opts ...grpc.CallOption) (*TelemetryResponse, error) {
	return invoke[TelemetryResponse](ctx, c, "EndSession", in, opts)
}

// ListTerritories returns the player's stored claims
func (c *Client) ListTerritories(ctx context.Context, in *ListTerritoriesRequest, opts ...grpc.CallOption) (*ListTerritoriesResponse, error) {
	return invoke[ListTerritoriesResponse](ctx, c, "ListTerritories", in, opts)
}
