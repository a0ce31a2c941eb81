package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NewLoggingInterceptor returns a Connect interceptor that logs every RPC
// call and counts it by procedure and result code. It logs the procedure
// name, member ID, duration, and any error codes/messages.
func NewLoggingInterceptor(reg prometheus.Registerer) connect.UnaryInterceptorFunc {
	requests := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "accord_rpc_requests_total",
		Help: "RPC requests by procedure and result code",
	}, []string{"procedure", "code"})

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			resp, err := next(ctx, req)

			memberID := GetMemberID(ctx) // empty if rejected pre-auth
			duration := time.Since(start).Milliseconds()
			code := "ok"
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					code = connectErr.Code().String()
					slog.Warn("RPC error",
						"procedure", procedure,
						"code", connectErr.Code(),
						"error", connectErr.Message(),
						"member_id", memberID,
						"duration_ms", duration,
					)
				} else {
					code = "unknown"
					slog.Error("RPC error",
						"procedure", procedure,
						"error", err,
						"member_id", memberID,
						"duration_ms", duration,
					)
				}
			} else {
				slog.Info("RPC ok",
					"procedure", procedure,
					"member_id", memberID,
					"duration_ms", duration,
				)
			}
			requests.WithLabelValues(procedure, code).Inc()

			return resp, err
		}
	}
}
