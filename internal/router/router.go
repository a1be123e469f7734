// Package router exposes the conversation and digest operations over HTTP.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/newsdigest/internal/logger"
	"github.com/patric-chuzhbe/newsdigest/internal/models"
	"github.com/patric-chuzhbe/newsdigest/internal/service"
)

const (
	rootMessage        = "News Automation API"
	testDigestSentText = "Test digest sent"
	userNotFoundText   = "User not found"
	invalidBodyText    = "Invalid request body."
	cronCompletedFmt   = "Cron job completed. Sent %d digests."
)

type digestService interface {
	ProcessMessage(ctx context.Context, req models.ProcessRequest) (models.ProcessResponse, error)
	SendTestDigest(ctx context.Context, email string) error
	RunDigests(ctx context.Context) (models.DigestRunReport, error)
	Ping(ctx context.Context) error
}

type authenticator interface {
	RequireAdmin(h http.Handler) http.Handler
}

type subnetGuard interface {
	Guard(h http.Handler) http.Handler
}

type Router struct {
	service digestService
	now     func() time.Time
}

// New builds the HTTP handler. metricsHandler may be nil, in which case
// /metrics is not routed.
func New(
	svc digestService,
	authMiddleware authenticator,
	guard subnetGuard,
	metricsHandler http.Handler,
) *chi.Mux {
	r := &Router{
		service: svc,
		now:     time.Now,
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		logger.WithLoggingHTTPMiddleware,
		middleware.Recoverer,
		middleware.Compress(5, "application/json", "text/plain"),
		allowAllOrigins,
	)

	router.Get(`/`, r.GetRoot)
	router.Get(`/ping`, r.GetPing)
	router.Post(`/api/process`, r.PostApiprocess)

	router.Group(func(admin chi.Router) {
		admin.Use(authMiddleware.RequireAdmin)
		admin.Get(`/api/test-digest/{email}`, r.GetApitestdigest)
		admin.Get(`/api/cron/send-digests`, r.GetApicronsenddigests)
	})

	if metricsHandler != nil {
		router.Method(http.MethodGet, `/metrics`, guard.Guard(metricsHandler))
	}

	return router
}

func (r *Router) GetRoot(res http.ResponseWriter, _ *http.Request) {
	writeJSON(res, http.StatusOK, models.MessageResponse{Message: rootMessage})
}

func (r *Router) GetPing(res http.ResponseWriter, req *http.Request) {
	if err := r.service.Ping(req.Context()); err != nil {
		logger.Log.Debugln("Error calling the `r.service.Ping()`: ", zap.Error(err))
		res.WriteHeader(http.StatusInternalServerError)
		return
	}
	res.WriteHeader(http.StatusOK)
}

func (r *Router) PostApiprocess(res http.ResponseWriter, req *http.Request) {
	var request models.ProcessRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		logger.Log.Debugln("Error decoding the process request: ", zap.Error(err))
		writeJSON(res, http.StatusBadRequest, models.ProcessResponse{Response: invalidBodyText})
		return
	}

	response, err := r.service.ProcessMessage(req.Context(), request)
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		writeJSON(res, http.StatusBadRequest, response)
	case err != nil:
		logger.Log.Errorw("message processing failed", "email", request.Email, "error", err)
		writeJSON(res, http.StatusInternalServerError, response)
	default:
		writeJSON(res, http.StatusOK, response)
	}
}

func (r *Router) GetApitestdigest(res http.ResponseWriter, req *http.Request) {
	email := chi.URLParam(req, "email")

	err := r.service.SendTestDigest(req.Context(), email)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeJSON(res, http.StatusNotFound, models.MessageResponse{Message: userNotFoundText})
	case errors.Is(err, service.ErrDeliveryFailed):
		logger.Log.Warnw("test digest failed", "email", email, "error", err)
		writeJSON(res, http.StatusBadGateway, models.MessageResponse{Message: err.Error()})
	case err != nil:
		logger.Log.Errorw("test digest failed", "email", email, "error", err)
		res.WriteHeader(http.StatusInternalServerError)
	default:
		writeJSON(res, http.StatusOK, models.MessageResponse{Message: testDigestSentText})
	}
}

func (r *Router) GetApicronsenddigests(res http.ResponseWriter, req *http.Request) {
	report, err := r.service.RunDigests(req.Context())
	if err != nil {
		logger.Log.Errorw("digest run failed", "error", err)
		res.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(res, http.StatusOK, models.CronResponse{
		Message:   fmt.Sprintf(cronCompletedFmt, report.Sent),
		Timestamp: r.now().UTC(),
		Report:    report,
	})
}

func writeJSON(res http.ResponseWriter, status int, body any) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	if err := json.NewEncoder(res).Encode(body); err != nil {
		logger.Log.Debugln("Error encoding the response: ", zap.Error(err))
	}
}

// allowAllOrigins answers CORS preflights and marks every response as
// readable from any origin.
func allowAllOrigins(h http.Handler) http.Handler {
	fn := func(res http.ResponseWriter, req *http.Request) {
		headers := res.Header()
		headers.Set("Access-Control-Allow-Origin", "*")
		headers.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		headers.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if req.Method == http.MethodOptions {
			res.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(res, req)
	}

	return http.HandlerFunc(fn)
}
