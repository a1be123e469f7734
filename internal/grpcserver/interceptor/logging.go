// Package interceptor holds unary gRPC server interceptors.
package interceptor

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/patric-chuzhbe/newsdigest/internal/logger"
)

// UnaryLoggingInterceptor logs every unary call with its peer, duration and
// status code. Successful calls to quietMethods, such as health probes that
// orchestrators send every few seconds, are logged at debug level only.
func UnaryLoggingInterceptor(quietMethods ...string) grpc.UnaryServerInterceptor {
	quiet := make(map[string]struct{}, len(quietMethods))
	for _, m := range quietMethods {
		quiet[m] = struct{}{}
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		st, _ := status.FromError(err)
		fields := []interface{}{
			"method", info.FullMethod,
			"peer", peerAddr(ctx),
			"duration", time.Since(start),
			"code", st.Code().String(),
		}
		_, isQuiet := quiet[info.FullMethod]
		switch {
		case st.Code() != codes.OK:
			logger.Log.Warnw("gRPC request failed", append(fields, "message", st.Message())...)
		case isQuiet:
			logger.Log.Debugw("gRPC request", fields...)
		default:
			logger.Log.Infow("gRPC request", fields...)
		}

		return resp, err
	}
}

// UnaryRecoveryInterceptor turns a panicking handler into an Internal error
// so one bad call cannot take the health server down.
func UnaryRecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.Errorw("gRPC handler panicked", "method", info.FullMethod, "panic", r)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func peerAddr(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	return p.Addr.String()
}
