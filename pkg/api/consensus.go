package api

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
)

// ConsensusServiceName is the fully-qualified name of the ConsensusService.
const ConsensusServiceName = "accord.v1.ConsensusService"

// ConsensusService procedure paths.
const (
	ConsensusServiceOpenBallotProcedure    = "/accord.v1.ConsensusService/OpenBallot"
	ConsensusServiceCastVoteProcedure      = "/accord.v1.ConsensusService/CastVote"
	ConsensusServiceGetBallotProcedure     = "/accord.v1.ConsensusService/GetBallot"
	ConsensusServiceResolveBallotProcedure = "/accord.v1.ConsensusService/ResolveBallot"
	ConsensusServiceGetLedgerProcedure     = "/accord.v1.ConsensusService/GetLedger"
)

// ConsensusServiceHandler is the server-side interface for the service.
type ConsensusServiceHandler interface {
	OpenBallot(context.Context, *connect.Request[OpenBallotRequest]) (*connect.Response[OpenBallotResponse], error)
	CastVote(context.Context, *connect.Request[CastVoteRequest]) (*connect.Response[CastVoteResponse], error)
	GetBallot(context.Context, *connect.Request[GetBallotRequest]) (*connect.Response[GetBallotResponse], error)
	ResolveBallot(context.Context, *connect.Request[ResolveBallotRequest]) (*connect.Response[ResolveBallotResponse], error)
	GetLedger(context.Context, *connect.Request[GetLedgerRequest]) (*connect.Response[GetLedgerResponse], error)
}

// NewConsensusServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and
// the handler itself.
func NewConsensusServiceHandler(svc ConsensusServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	openBallot := connect.NewUnaryHandler(ConsensusServiceOpenBallotProcedure, svc.OpenBallot, opts...)
	castVote := connect.NewUnaryHandler(ConsensusServiceCastVoteProcedure, svc.CastVote, opts...)
	getBallot := connect.NewUnaryHandler(ConsensusServiceGetBallotProcedure, svc.GetBallot, opts...)
	resolveBallot := connect.NewUnaryHandler(ConsensusServiceResolveBallotProcedure, svc.ResolveBallot, opts...)
	getLedger := connect.NewUnaryHandler(ConsensusServiceGetLedgerProcedure, svc.GetLedger, opts...)
	return "/accord.v1.ConsensusService/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ConsensusServiceOpenBallotProcedure:
			openBallot.ServeHTTP(w, r)
		case ConsensusServiceCastVoteProcedure:
			castVote.ServeHTTP(w, r)
		case ConsensusServiceGetBallotProcedure:
			getBallot.ServeHTTP(w, r)
		case ConsensusServiceResolveBallotProcedure:
			resolveBallot.ServeHTTP(w, r)
		case ConsensusServiceGetLedgerProcedure:
			getLedger.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ConsensusServiceClient is the client-side interface for the service.
type ConsensusServiceClient interface {
	OpenBallot(context.Context, *connect.Request[OpenBallotRequest]) (*connect.Response[OpenBallotResponse], error)
	CastVote(context.Context, *connect.Request[CastVoteRequest]) (*connect.Response[CastVoteResponse], error)
	GetBallot(context.Context, *connect.Request[GetBallotRequest]) (*connect.Response[GetBallotResponse], error)
	ResolveBallot(context.Context, *connect.Request[ResolveBallotRequest]) (*connect.Response[ResolveBallotResponse], error)
	GetLedger(context.Context, *connect.Request[GetLedgerRequest]) (*connect.Response[GetLedgerResponse], error)
}

// NewConsensusServiceClient builds a client that talks to the service at
// baseURL over the given HTTP client.
func NewConsensusServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) ConsensusServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &consensusServiceClient{
		openBallot:    connect.NewClient[OpenBallotRequest, OpenBallotResponse](httpClient, baseURL+ConsensusServiceOpenBallotProcedure, opts...),
		castVote:      connect.NewClient[CastVoteRequest, CastVoteResponse](httpClient, baseURL+ConsensusServiceCastVoteProcedure, opts...),
		getBallot:     connect.NewClient[GetBallotRequest, GetBallotResponse](httpClient, baseURL+ConsensusServiceGetBallotProcedure, opts...),
		resolveBallot: connect.NewClient[ResolveBallotRequest, ResolveBallotResponse](httpClient, baseURL+ConsensusServiceResolveBallotProcedure, opts...),
		getLedger:     connect.NewClient[GetLedgerRequest, GetLedgerResponse](httpClient, baseURL+ConsensusServiceGetLedgerProcedure, opts...),
	}
}

type consensusServiceClient struct {
	openBallot    *connect.Client[OpenBallotRequest, OpenBallotResponse]
	castVote      *connect.Client[CastVoteRequest, CastVoteResponse]
	getBallot     *connect.Client[GetBallotRequest, GetBallotResponse]
	resolveBallot *connect.Client[ResolveBallotRequest, ResolveBallotResponse]
	getLedger     *connect.Client[GetLedgerRequest, GetLedgerResponse]
}

func (c *consensusServiceClient) OpenBallot(ctx context.Context, req *connect.Request[OpenBallotRequest]) (*connect.Response[OpenBallotResponse], error) {
	return c.openBallot.CallUnary(ctx, req)
}

func (c *consensusServiceClient) CastVote(ctx context.Context, req *connect.Request[CastVoteRequest]) (*connect.Response[CastVoteResponse], error) {
	return c.castVote.CallUnary(ctx, req)
}

func (c *consensusServiceClient) GetBallot(ctx context.Context, req *connect.Request[GetBallotRequest]) (*connect.Response[GetBallotResponse], error) {
	return c.getBallot.CallUnary(ctx, req)
}

func (c *consensusServiceClient) ResolveBallot(ctx context.Context, req *connect.Request[ResolveBallotRequest]) (*connect.Response[ResolveBallotResponse], error) {
	return c.resolveBallot.CallUnary(ctx, req)
}

func (c *consensusServiceClient) GetLedger(ctx context.Context, req *connect.Request[GetLedgerRequest]) (*connect.Response[GetLedgerResponse], error) {
	return c.getLedger.CallUnary(ctx, req)
}

// UnimplementedConsensusServiceHandler returns CodeUnimplemented for all
// procedures. Embed it for forward compatibility.
type UnimplementedConsensusServiceHandler struct{}

func (UnimplementedConsensusServiceHandler) OpenBallot(context.Context, *connect.Request[OpenBallotRequest]) (*connect.Response[OpenBallotResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("OpenBallot is not implemented"))
}

func (UnimplementedConsensusServiceHandler) CastVote(context.Context, *connect.Request[CastVoteRequest]) (*connect.Response[CastVoteResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("CastVote is not implemented"))
}

func (UnimplementedConsensusServiceHandler) GetBallot(context.Context, *connect.Request[GetBallotRequest]) (*connect.Response[GetBallotResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("GetBallot is not implemented"))
}

func (UnimplementedConsensusServiceHandler) ResolveBallot(context.Context, *connect.Request[ResolveBallotRequest]) (*connect.Response[ResolveBallotResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("ResolveBallot is not implemented"))
}

func (UnimplementedConsensusServiceHandler) GetLedger(context.Context, *connect.Request[GetLedgerRequest]) (*connect.Response[GetLedgerResponse], error) {
	return nil, connect.NewError(connect.CodeUnimplemented, errors.New("GetLedger is not implemented"))
}
