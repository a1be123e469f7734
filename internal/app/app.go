// Package app initializes and runs the digest service.
// It configures logging, storage, the language model and mail adapters,
// the scheduler and routing, and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"github.com/patric-chuzhbe/newsdigest/internal/auth"
	"github.com/patric-chuzhbe/newsdigest/internal/composer"
	"github.com/patric-chuzhbe/newsdigest/internal/config"
	"github.com/patric-chuzhbe/newsdigest/internal/conversation"
	"github.com/patric-chuzhbe/newsdigest/internal/db/jsondb"
	"github.com/patric-chuzhbe/newsdigest/internal/db/memorystorage"
	"github.com/patric-chuzhbe/newsdigest/internal/db/postgresdb"
	"github.com/patric-chuzhbe/newsdigest/internal/db/sqlitedb"
	"github.com/patric-chuzhbe/newsdigest/internal/db/storage"
	"github.com/patric-chuzhbe/newsdigest/internal/digest"
	"github.com/patric-chuzhbe/newsdigest/internal/events"
	"github.com/patric-chuzhbe/newsdigest/internal/fetcher"
	"github.com/patric-chuzhbe/newsdigest/internal/grpcserver"
	"github.com/patric-chuzhbe/newsdigest/internal/intent"
	"github.com/patric-chuzhbe/newsdigest/internal/ipchecker"
	"github.com/patric-chuzhbe/newsdigest/internal/llm"
	"github.com/patric-chuzhbe/newsdigest/internal/logger"
	"github.com/patric-chuzhbe/newsdigest/internal/metrics"
	"github.com/patric-chuzhbe/newsdigest/internal/models"
	"github.com/patric-chuzhbe/newsdigest/internal/notifier"
	"github.com/patric-chuzhbe/newsdigest/internal/router"
	"github.com/patric-chuzhbe/newsdigest/internal/service"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

const (
	eventQueueCapacity = 256
	eventFlushInterval = 2 * time.Second
	shutdownTimeout    = 10 * time.Second
	htmlItemsPerSource = 10
)

type resolver interface {
	Resolve(ctx context.Context, message, email string) conversation.Intent
}

type sourceFetcher interface {
	Fetch(ctx context.Context, source user.SourceRef) []models.ContentItem
}

type digestComposer interface {
	Compose(ctx context.Context, items []models.ContentItem) (models.DigestBody, error)
}

type digestNotifier interface {
	Send(ctx context.Context, address, subject string, body models.DigestBody) error
}

// App encapsulates the configuration, HTTP handler, storage backend,
// and background services (scheduler, event dispatcher, gRPC health)
// needed to run the digest service.
type App struct {
	cfg          *config.Config
	db           storage.Storage
	service      *service.Service
	runner       *digest.Runner
	events       *events.Dispatcher
	natsConn     *nats.Conn
	grpcServer   *grpc.Server
	grpcListener net.Listener
	httpHandler  http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - choosing the resolver, fetcher, composer and notifier adapters
// - setting up the scheduler, events and routing
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel, app.cfg.LogLevel == "debug")
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(reg)

	var model *llm.Client
	if app.cfg.OpenAIAPIKey != "" {
		model = llm.New(
			app.cfg.OpenAIBaseURL,
			app.cfg.OpenAIAPIKey,
			llm.WithModel(app.cfg.OpenAIModel),
			llm.WithRateLimit(app.cfg.LLMRPS),
			llm.WithTimeout(app.cfg.CollaboratorTimeout),
		)
	}

	theNotifier, err := newNotifier(app.cfg)
	if err != nil {
		return nil, err
	}

	schedulerOptions := []digest.Option{
		digest.WithConcurrency(app.cfg.DigestConcurrency),
		digest.WithItemLimit(app.cfg.DigestItemLimit),
		digest.WithCallTimeout(app.cfg.CollaboratorTimeout),
		digest.WithDedup(app.cfg.DigestDedup),
		digest.WithRecorder(recorder),
	}

	if app.cfg.NATSURL != "" {
		app.natsConn, err = events.Connect(app.cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		app.events = events.New(app.natsConn, app.cfg.NATSSubject, eventQueueCapacity, eventFlushInterval)
		app.events.ListenErrors(func(err error) {
			logger.Log.Errorw("Error passed from the `app.events.ListenErrors()`", "error", err)
		})
		schedulerOptions = append(schedulerOptions, digest.WithEvents(app.events))
	}

	scheduler := digest.New(
		newFetcher(app.cfg, model),
		newComposer(model),
		theNotifier,
		schedulerOptions...,
	)

	sendTime, err := user.ParseClock(app.cfg.DefaultSendTime)
	if err != nil {
		return nil, err
	}
	machine := conversation.NewMachine(conversation.WithDefaults(conversation.Defaults{
		Timezone: app.cfg.DefaultTimezone,
		SendTime: sendTime,
	}))

	app.service = service.New(
		app.db,
		newResolver(model),
		machine,
		scheduler,
		service.WithRecorder(recorder),
	)

	checker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	app.httpHandler = router.New(
		app.service,
		auth.New([]byte(app.cfg.AdminSigningKey)),
		checker,
		metrics.HTTPHandler(reg),
	)

	if !app.cfg.SchedulerDisabled {
		app.runner, err = digest.NewRunner(app.cfg.SchedulerCron, app.runDigests)
		if err != nil {
			return nil, err
		}
	}

	if app.cfg.GRPCAddr != "" {
		app.grpcServer, app.grpcListener, err = grpcserver.NewGRPCServer(app.cfg.GRPCAddr, app.db)
		if err != nil {
			return nil, err
		}
	}

	return app, nil
}

func (a *App) runDigests(ctx context.Context, firedAt time.Time) {
	report, err := a.service.RunDigestsAt(ctx, firedAt)
	if err != nil {
		logger.Log.Errorw("scheduled digest run failed", "error", err)
		return
	}
	if report.Attempted > 0 || report.Skipped > 0 {
		logger.Log.Infow("scheduled digest run", "run_id", report.RunID, "sent", report.Sent, "failed", len(report.Errors))
	}
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventsDone := make(chan struct{})
	if a.events != nil {
		go func() {
			a.events.Run(ctx)
			close(eventsDone)
		}()
	} else {
		close(eventsDone)
	}

	if a.runner != nil {
		a.runner.Start(ctx)
	}

	serverErrCh := make(chan error, 2)
	if a.grpcServer != nil {
		logger.Log.Infow("gRPC server running", "GRPCAddr", a.cfg.GRPCAddr)
		go func() {
			serverErrCh <- a.grpcServer.Serve(a.grpcListener)
		}()
	}

	logger.Log.Infow("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:              a.cfg.RunAddr,
		Handler:           a.httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Stopping the scheduler and exiting...")
	case err := <-serverErrCh:
		runErr = fmt.Errorf("server error: %w", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	errs = append(errs, runErr)
	if a.runner != nil {
		errs = append(errs, a.runner.Shutdown())
	}
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	<-eventsDone
	if a.natsConn != nil {
		errs = append(errs, a.natsConn.Drain())
	}
	errs = append(errs, a.db.Close())

	return errors.Join(errs...)
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func newResolver(model *llm.Client) resolver {
	if model == nil {
		return intent.NewKeywordResolver()
	}
	return intent.NewOpenAIResolver(model)
}

func newFetcher(cfg *config.Config, model *llm.Client) sourceFetcher {
	html := fetcher.NewHTMLFetcher(htmlItemsPerSource)
	if model == nil || cfg.FirecrawlAPIKey == "" {
		return html
	}
	return fetcher.NewFirecrawlFetcher(
		cfg.FirecrawlBaseURL,
		cfg.FirecrawlAPIKey,
		model,
		fetcher.WithFallback(html),
	)
}

func newComposer(model *llm.Client) digestComposer {
	if model == nil {
		return composer.NewMarkdownComposer()
	}
	return composer.NewLLMComposer(model)
}

// newNotifier prefers Resend, then SMTP, and falls back to logging the
// digest instead of sending it.
func newNotifier(cfg *config.Config) (digestNotifier, error) {
	switch {
	case cfg.ResendAPIKey != "":
		return notifier.NewResendNotifier(cfg.ResendBaseURL, cfg.ResendAPIKey, cfg.MailFrom), nil
	case cfg.SMTPAddr != "":
		return notifier.NewSMTPNotifier(cfg.SMTPAddr, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	default:
		logger.Log.Warnln("no email provider configured, digests will only be logged")
		return notifier.NewLogNotifier(), nil
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	switch cfg.StorageType {
	case config.StoragePostgres:
		return models.StorageTypePostgresql
	case config.StorageSQLite:
		return models.StorageTypeSQLite
	case config.StorageFile:
		return models.StorageTypeFile
	case config.StorageMemory:
		return models.StorageTypeMemory
	case config.StorageAuto:
	default:
		return models.StorageTypeUnknown
	}

	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.SQLitePath != "" {
		return models.StorageTypeSQLite
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeSQLite:
		return sqlitedb.New(context.Background(), cfg.SQLitePath)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
