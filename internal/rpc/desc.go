package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "stash.v1.HistoryService"

// HistoryServer is the server side of HistoryService.
type HistoryServer interface {
	Recent(context.Context, *RecentRequest) (*EntriesResponse, error)
	Search(context.Context, *SearchRequest) (*EntriesResponse, error)
	Text(context.Context, *IDRequest) (*TextResponse, error)
	Image(context.Context, *IDRequest) (*ImageResponse, error)
	Delete(context.Context, *IDRequest) (*Empty, error)
	Touch(context.Context, *IDRequest) (*Empty, error)
	Suppress(context.Context, *SuppressRequest) (*Empty, error)
	Paste(context.Context, *PasteRequest) (*Empty, error)
	Copy(context.Context, *CopyRequest) (*Empty, error)
	Toggle(context.Context, *Empty) (*ToggleResponse, error)
	Status(context.Context, *Empty) (*StatusResponse, error)
	Watch(*WatchRequest, grpc.ServerStream) error
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req, Resp any](name string, call func(HistoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(HistoryServer), ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(HistoryServer), ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Recent", HistoryServer.Recent),
		unary("Search", HistoryServer.Search),
		unary("Text", HistoryServer.Text),
		unary("Image", HistoryServer.Image),
		unary("Delete", HistoryServer.Delete),
		unary("Touch", HistoryServer.Touch),
		unary("Suppress", HistoryServer.Suppress),
		unary("Paste", HistoryServer.Paste),
		unary("Copy", HistoryServer.Copy),
		unary("Toggle", HistoryServer.Toggle),
		unary("Status", HistoryServer.Status),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Watch",
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			req := new(WatchRequest)
			if err := stream.RecvMsg(req); err != nil {
				return err
			}
			return srv.(HistoryServer).Watch(req, stream)
		},
	}},
	Metadata: "stash/v1/history",
}

// Register exposes srv on s.
func Register(s grpc.ServiceRegistrar, srv HistoryServer) {
	s.RegisterService(&serviceDesc, srv)
}
