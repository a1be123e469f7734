// Package logger holds the process-wide zap logger and the HTTP access log
// middleware.
package logger

import (
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type responseData struct {
	status int
	size   int
}

type loggingResponseWriter struct {
	http.ResponseWriter
	responseData *responseData
}

// Log is a global SugaredLogger instance from the zap logging library.
// Log discards everything until Init() is called.
var Log = zap.NewNop().Sugar()

func (r *loggingResponseWriter) Write(b []byte) (int, error) {
	if r.responseData.status == 0 {
		r.responseData.status = http.StatusOK
	}
	size, err := r.ResponseWriter.Write(b)
	r.responseData.size += size
	return size, err
}

func (r *loggingResponseWriter) WriteHeader(statusCode int) {
	r.ResponseWriter.WriteHeader(statusCode)
	r.responseData.status = statusCode
}

// Init replaces Log with a logger writing at level. Development mode uses
// the human readable console encoder, otherwise JSON lines are written.
func Init(level string, development bool) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	zl, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = zl.Sugar()

	return nil
}

// Sync flushes any buffered log entries to the output.
func Sync() error {
	err := Log.Sync()
	if err == nil || errors.Is(err, os.ErrInvalid) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) {
		return nil
	}

	return err
}

// WithLoggingHTTPMiddleware logs one line per request with its method, uri,
// status, duration, response size and the chi request id when present.
func WithLoggingHTTPMiddleware(h http.Handler) http.Handler {
	logFn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		responseData := &responseData{
			status: 0,
			size:   0,
		}
		lw := loggingResponseWriter{
			ResponseWriter: w,
			responseData:   responseData,
		}
		h.ServeHTTP(&lw, r)

		Log.Infow(
			"request served",
			"request_id", middleware.GetReqID(r.Context()),
			"uri", r.RequestURI,
			"method", r.Method,
			"status", responseData.status,
			"duration", time.Since(start),
			"size", responseData.size,
		)
	}

	return http.HandlerFunc(logFn)
}
