package api

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
)

// TripServiceName is the fully-qualified name of the TripService.
const TripServiceName = "accord.v1.TripService"

// TripService procedure paths.
const (
	TripServiceRegisterTripProcedure = "/accord.v1.TripService/RegisterTrip"
	TripServiceSyncSlotProcedure     = "/accord.v1.TripService/SyncSlot"
)

// TripServiceHandler is the server-side interface for the service.
type TripServiceHandler interface {
	RegisterTrip(context.Context, *connect.Request[RegisterTripRequest]) (*connect.Response[RegisterTripResponse], error)
	SyncSlot(context.Context, *connect.Request[SyncSlotRequest]) (*connect.Response[SyncSlotResponse], error)
}

// NewTripServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and
// the handler itself.
func NewTripServiceHandler(svc TripServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	registerTrip := connect.NewUnaryHandler(TripServiceRegisterTripProcedure, svc.RegisterTrip, opts...)
	syncSlot := connect.NewUnaryHandler(TripServiceSyncSlotProcedure, svc.SyncSlot, opts...)
	return "/accord.v1.TripService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case TripServiceRegisterTripProcedure:
			registerTrip.ServeHTTP(w, r)
		case TripServiceSyncSlotProcedure:
			syncSlot.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// TripServiceClient is the client-side interface for the service.
type TripServiceClient interface {
	RegisterTrip(context.Context, *connect.Request[RegisterTripRequest]) (*connect.Response[RegisterTripResponse], error)
	SyncSlot(context.Context, *connect.Request[SyncSlotRequest]) (*connect.Response[SyncSlotResponse], error)
}

// NewTripServiceClient builds a client that talks to the service at
// baseURL over the given HTTP client.
func NewTripServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) TripServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &tripServiceClient{
		registerTrip: connect.NewClient[RegisterTripRequest, RegisterTripResponse](httpClient, baseURL+TripServiceRegisterTripProcedure, opts...),
		syncSlot:     connect.NewClient[SyncSlotRequest, SyncSlotResponse](httpClient, baseURL+TripServiceSyncSlotProcedure, opts...),
	}
}

type tripServiceClient struct {
	registerTrip *connect.Client[RegisterTripRequest, RegisterTripResponse]
	syncSlot     *connect.Client[SyncSlotRequest, SyncSlotResponse]
}

func (c *tripServiceClient) RegisterTrip(ctx context.Context, req *connect.Request[RegisterTripRequest]) (*connect.Response[RegisterTripResponse], error) {
	return c.registerTrip.CallUnary(ctx, req)
}

func (c *tripServiceClient) SyncSlot(ctx context.Context, req *connect.Request[SyncSlotRequest]) (*connect.Response[SyncSlotResponse], error) {
	return c.syncSlot.CallUnary(ctx, req)
}

// UnimplementedTripServiceHandler returns CodeUnimplemented for all
// procedures. Embed it for forward compatibility.
type UnimplementedTripServiceHandler struct{}

func (UnimplementedTripServiceHandler) RegisterTrip(context.Context, *connect.Request[RegisterTripRequest]) (*connect.Response[RegisterTripResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("RegisterTrip is not implemented"))
}

func (UnimplementedTripServiceHandler) SyncSlot(context.Context, *connect.Request[SyncSlotRequest]) (*connect.Response[SyncSlotResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("SyncSlot is not implemented"))
}
