package api

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
)

// PivotServiceName is the fully-qualified name of the PivotService.
const PivotServiceName = "accord.v1.PivotService"

// PivotService procedure paths.
const (
	PivotServiceReportDisruptionProcedure = "/accord.v1.PivotService/ReportDisruption"
	PivotServiceIngestWeatherProcedure    = "/accord.v1.PivotService/IngestWeather"
	PivotServiceRespondToPivotProcedure   = "/accord.v1.PivotService/RespondToPivot"
	PivotServiceGetPivotProcedure         = "/accord.v1.PivotService/GetPivot"
	PivotServiceListPivotsProcedure       = "/accord.v1.PivotService/ListPivots"
)

// PivotServiceHandler is the server-side interface for the service.
type PivotServiceHandler interface {
	ReportDisruption(context.Context, *connect.Request[ReportDisruptionRequest]) (*connect.Response[ReportDisruptionResponse], error)
	IngestWeather(context.Context, *connect.Request[IngestWeatherRequest]) (*connect.Response[IngestWeatherResponse], error)
	RespondToPivot(context.Context, *connect.Request[RespondToPivotRequest]) (*connect.Response[RespondToPivotResponse], error)
	GetPivot(context.Context, *connect.Request[GetPivotRequest]) (*connect.Response[GetPivotResponse], error)
	ListPivots(context.Context, *connect.Request[ListPivotsRequest]) (*connect.Response[ListPivotsResponse], error)
}

// NewPivotServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and
// the handler itself.
func NewPivotServiceHandler(svc PivotServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	reportDisruption := connect.NewUnaryHandler(PivotServiceReportDisruptionProcedure, svc.ReportDisruption, opts...)
	ingestWeather := connect.NewUnaryHandler(PivotServiceIngestWeatherProcedure, svc.IngestWeather, opts...)
	respondToPivot := connect.NewUnaryHandler(PivotServiceRespondToPivotProcedure, svc.RespondToPivot, opts...)
	getPivot := connect.NewUnaryHandler(PivotServiceGetPivotProcedure, svc.GetPivot, opts...)
	listPivots := connect.NewUnaryHandler(PivotServiceListPivotsProcedure, svc.ListPivots, opts...)
	return "/accord.v1.PivotService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PivotServiceReportDisruptionProcedure:
			reportDisruption.ServeHTTP(w, r)
		case PivotServiceIngestWeatherProcedure:
			ingestWeather.ServeHTTP(w, r)
		case PivotServiceRespondToPivotProcedure:
			respondToPivot.ServeHTTP(w, r)
		case PivotServiceGetPivotProcedure:
			getPivot.ServeHTTP(w, r)
		case PivotServiceListPivotsProcedure:
			listPivots.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// PivotServiceClient is the client-side interface for the service.
type PivotServiceClient interface {
	ReportDisruption(context.Context, *connect.Request[ReportDisruptionRequest]) (*connect.Response[ReportDisruptionResponse], error)
	IngestWeather(context.Context, *connect.Request[IngestWeatherRequest]) (*connect.Response[IngestWeatherResponse], error)
	RespondToPivot(context.Context, *connect.Request[RespondToPivotRequest]) (*connect.Response[RespondToPivotResponse], error)
	GetPivot(context.Context, *connect.Request[GetPivotRequest]) (*connect.Response[GetPivotResponse], error)
	ListPivots(context.Context, *connect.Request[ListPivotsRequest]) (*connect.Response[ListPivotsResponse], error)
}

// NewPivotServiceClient builds a client that talks to the service at
// baseURL over the given HTTP client.
func NewPivotServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) PivotServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &pivotServiceClient{
		reportDisruption: connect.NewClient[ReportDisruptionRequest, ReportDisruptionResponse](httpClient, baseURL+PivotServiceReportDisruptionProcedure, opts...),
		ingestWeather:    connect.NewClient[IngestWeatherRequest, IngestWeatherResponse](httpClient, baseURL+PivotServiceIngestWeatherProcedure, opts...),
		respondToPivot:   connect.NewClient[RespondToPivotRequest, RespondToPivotResponse](httpClient, baseURL+PivotServiceRespondToPivotProcedure, opts...),
		getPivot:         connect.NewClient[GetPivotRequest, GetPivotResponse](httpClient, baseURL+PivotServiceGetPivotProcedure, opts...),
		listPivots:       connect.NewClient[ListPivotsRequest, ListPivotsResponse](httpClient, baseURL+PivotServiceListPivotsProcedure, opts...),
	}
}

type pivotServiceClient struct {
	reportDisruption *connect.Client[ReportDisruptionRequest, ReportDisruptionResponse]
	ingestWeather    *connect.Client[IngestWeatherRequest, IngestWeatherResponse]
	respondToPivot   *connect.Client[RespondToPivotRequest, RespondToPivotResponse]
	getPivot         *connect.Client[GetPivotRequest, GetPivotResponse]
	listPivots       *connect.Client[ListPivotsRequest, ListPivotsResponse]
}

func (c *pivotServiceClient) ReportDisruption(ctx context.Context, req *connect.Request[ReportDisruptionRequest]) (*connect.Response[ReportDisruptionResponse], error) {
	return c.reportDisruption.CallUnary(ctx, req)
}

func (c *pivotServiceClient) IngestWeather(ctx context.Context, req *connect.Request[IngestWeatherRequest]) (*connect.Response[IngestWeatherResponse], error) {
	return c.ingestWeather.CallUnary(ctx, req)
}

func (c *pivotServiceClient) RespondToPivot(ctx context.Context, req *connect.Request[RespondToPivotRequest]) (*connect.Response[RespondToPivotResponse], error) {
	return c.respondToPivot.CallUnary(ctx, req)
}

func (c *pivotServiceClient) GetPivot(ctx context.Context, req *connect.Request[GetPivotRequest]) (*connect.Response[GetPivotResponse], error) {
	return c.getPivot.CallUnary(ctx, req)
}

func (c *pivotServiceClient) ListPivots(ctx context.Context, req *connect.Request[ListPivotsRequest]) (*connect.Response[ListPivotsResponse], error) {
	return c.listPivots.CallUnary(ctx, req)
}

// UnimplementedPivotServiceHandler returns CodeUnimplemented for all
// procedures. Embed it for forward compatibility.
type UnimplementedPivotServiceHandler struct{}

func (UnimplementedPivotServiceHandler) ReportDisruption(context.Context, *connect.Request[ReportDisruptionRequest]) (*connect.Response[ReportDisruptionResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("ReportDisruption is not implemented"))
}

func (UnimplementedPivotServiceHandler) IngestWeather(context.Context, *connect.Request[IngestWeatherRequest]) (*connect.Response[IngestWeatherResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("IngestWeather is not implemented"))
}

func (UnimplementedPivotServiceHandler) RespondToPivot(context.Context, *connect.Request[RespondToPivotRequest]) (*connect.Response[RespondToPivotResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("RespondToPivot is not implemented"))
}

func (UnimplementedPivotServiceHandler) GetPivot(context.Context, *connect.Request[GetPivotRequest]) (*connect.Response[GetPivotResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("GetPivot is not implemented"))
}

func (UnimplementedPivotServiceHandler) ListPivots(context.Context, *connect.Request[ListPivotsRequest]) (*connect.Response[ListPivotsResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("ListPivots is not implemented"))
}
