package api

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
)

// TrustServiceName is the fully-qualified name of the TrustService.
const TrustServiceName = "accord.v1.TrustService"

// TrustService procedure paths.
const (
	TrustServiceReactToActivityProcedure     = "/accord.v1.TrustService/ReactToActivity"
	TrustServiceListModerationQueueProcedure = "/accord.v1.TrustService/ListModerationQueue"
)

// TrustServiceHandler is the server-side interface for the service.
type TrustServiceHandler interface {
	ReactToActivity(context.Context, *connect.Request[ReactToActivityRequest]) (*connect.Response[ReactToActivityResponse], error)
	ListModerationQueue(context.Context, *connect.Request[ListModerationQueueRequest]) (*connect.Response[ListModerationQueueResponse], error)
}

// NewTrustServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and
// the handler itself.
func NewTrustServiceHandler(svc TrustServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	reactToActivity := connect.NewUnaryHandler(TrustServiceReactToActivityProcedure, svc.ReactToActivity, opts...)
	listModerationQueue := connect.NewUnaryHandler(TrustServiceListModerationQueueProcedure, svc.ListModerationQueue, opts...)
	return "/accord.v1.TrustService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case TrustServiceReactToActivityProcedure:
			reactToActivity.ServeHTTP(w, r)
		case TrustServiceListModerationQueueProcedure:
			listModerationQueue.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// TrustServiceClient is the client-side interface for the service.
type TrustServiceClient interface {
	ReactToActivity(context.Context, *connect.Request[ReactToActivityRequest]) (*connect.Response[ReactToActivityResponse], error)
	ListModerationQueue(context.Context, *connect.Request[ListModerationQueueRequest]) (*connect.Response[ListModerationQueueResponse], error)
}

// NewTrustServiceClient builds a client that talks to the service at
// baseURL over the given HTTP client.
func NewTrustServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) TrustServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &trustServiceClient{
		reactToActivity:     connect.NewClient[ReactToActivityRequest, ReactToActivityResponse](httpClient, baseURL+TrustServiceReactToActivityProcedure, opts...),
		listModerationQueue: connect.NewClient[ListModerationQueueRequest, ListModerationQueueResponse](httpClient, baseURL+TrustServiceListModerationQueueProcedure, opts...),
	}
}

type trustServiceClient struct {
	reactToActivity     *connect.Client[ReactToActivityRequest, ReactToActivityResponse]
	listModerationQueue *connect.Client[ListModerationQueueRequest, ListModerationQueueResponse]
}

func (c *trustServiceClient) ReactToActivity(ctx context.Context, req *connect.Request[ReactToActivityRequest]) (*connect.Response[ReactToActivityResponse], error) {
	return c.reactToActivity.CallUnary(ctx, req)
}

func (c *trustServiceClient) ListModerationQueue(ctx context.Context, req *connect.Request[ListModerationQueueRequest]) (*connect.Response[ListModerationQueueResponse], error) {
	return c.listModerationQueue.CallUnary(ctx, req)
}

// UnimplementedTrustServiceHandler returns CodeUnimplemented for all
// procedures. Embed it for forward compatibility.
type UnimplementedTrustServiceHandler struct{}

func (UnimplementedTrustServiceHandler) ReactToActivity(context.Context, *connect.Request[ReactToActivityRequest]) (*connect.Response[ReactToActivityResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("ReactToActivity is not implemented"))
}

func (UnimplementedTrustServiceHandler) ListModerationQueue(context.Context, *connect.Request[ListModerationQueueRequest]) (*connect.Response[ListModerationQueueResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("ListModerationQueue is not implemented"))
}
