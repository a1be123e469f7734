// Package digest decides which subscribers are due and delivers their daily
// digest.
package digest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/patric-chuzhbe/newsdigest/internal/logger"
	"github.com/patric-chuzhbe/newsdigest/internal/metrics"
	"github.com/patric-chuzhbe/newsdigest/internal/models"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

const (
	SubjectPrefix = "Your Daily News Digest - "
	subjectLayout = "January 2, 2006"

	DefaultConcurrency = 4
	DefaultItemLimit   = 20
	DefaultCallTimeout = 60 * time.Second
)

// DefaultSources are used for subscribers that have not added any source.
var DefaultSources = []user.SourceRef{
	{Name: "Medium", URL: "https://medium.com/tag/artificial-intelligence"},
	{Name: "Google News Tech", URL: "https://news.google.com/topics/CAAqJggKIiBDQkFTRWdvSUwyMHZNRGRqTVhZU0FtVnVHZ0pWVXlnQVAB"},
}

type fetcher interface {
	Fetch(ctx context.Context, source user.SourceRef) []models.ContentItem
}

type composer interface {
	Compose(ctx context.Context, items []models.ContentItem) (models.DigestBody, error)
}

type notifier interface {
	Send(ctx context.Context, address, subject string, body models.DigestBody) error
}

type eventSink interface {
	Enqueue(ev *models.DigestEvent)
}

type Scheduler struct {
	fetcher        fetcher
	composer       composer
	notifier       notifier
	concurrency    int
	slots          *semaphore.Weighted
	itemLimit      int
	callTimeout    time.Duration
	defaultSources []user.SourceRef
	ledger         *ledger
	recorder       *metrics.Recorder
	events         eventSink
}

type Option func(*Scheduler)

func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithItemLimit(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.itemLimit = n
		}
	}
}

// WithCallTimeout bounds every single fetch, compose and send call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithDedup makes the scheduler skip subscribers that already got a digest
// on their current local date.
func WithDedup(enabled bool) Option {
	return func(s *Scheduler) {
		if enabled {
			s.ledger = newLedger()
		} else {
			s.ledger = nil
		}
	}
}

func WithDefaultSources(sources []user.SourceRef) Option {
	return func(s *Scheduler) {
		s.defaultSources = sources
	}
}

func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}

func WithEvents(sink eventSink) Option {
	return func(s *Scheduler) {
		s.events = sink
	}
}

func New(f fetcher, c composer, n notifier, options ...Option) *Scheduler {
	s := &Scheduler{
		fetcher:        f,
		composer:       c,
		notifier:       n,
		concurrency:    DefaultConcurrency,
		itemLimit:      DefaultItemLimit,
		callTimeout:    DefaultCallTimeout,
		defaultSources: DefaultSources,
	}
	for _, option := range options {
		option(s)
	}
	s.slots = semaphore.NewWeighted(int64(s.concurrency))
	return s
}

// IsDue reports whether now, seen in the subscriber's timezone, falls on
// the subscriber's send time. Seconds are ignored.
func IsDue(u *user.User, now time.Time) bool {
	loc, err := u.Location()
	if err != nil {
		return false
	}
	return u.SendTime.Matches(now.In(loc))
}

// Subject is the email subject for a digest sent at now in loc.
func Subject(now time.Time, loc *time.Location) string {
	return SubjectPrefix + now.In(loc).Format(subjectLayout)
}

// Tick delivers digests to every due subscriber in users. Deliveries run
// concurrently and independently: one failure never affects the others.
// The due set is fixed from now before any delivery starts. Overlapping
// ticks share the same concurrency limit.
func (s *Scheduler) Tick(ctx context.Context, users []*user.User, now time.Time) models.DigestRunReport {
	report := models.DigestRunReport{
		RunID:     uuid.NewString(),
		StartedAt: now.UTC(),
		Errors:    map[string]string{},
	}
	started := time.Now()

	var (
		mu  sync.Mutex
		due int
		g   errgroup.Group
	)

	for _, u := range users {
		if u == nil {
			continue
		}
		loc, err := u.Location()
		if err != nil {
			logger.Log.Warnw("skipping subscriber with unusable timezone", "email", u.Email, "timezone", u.Timezone)
			continue
		}
		if !u.SendTime.Matches(now.In(loc)) {
			continue
		}
		due++

		day := now.In(loc).Format(time.DateOnly)
		if s.ledger != nil && !s.ledger.claim(u.Email, day) {
			report.Skipped++
			s.recorder.IncDigest(metrics.ResultSkipped)
			continue
		}
		report.Attempted++

		g.Go(func() error {
			err := s.slots.Acquire(ctx, 1)
			if err == nil {
				err = s.deliver(ctx, u, now, loc, report.RunID)
				s.slots.Release(1)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors[u.Email] = err.Error()
				if s.ledger != nil {
					s.ledger.release(u.Email, day)
				}
				return nil
			}
			report.Sent++
			return nil
		})
	}
	_ = g.Wait()

	s.recorder.ObserveTick(time.Since(started), due)
	if s.ledger != nil {
		s.ledger.prune(now.Add(-48 * time.Hour).Format(time.DateOnly))
	}
	logger.Log.Infow(
		"digest tick finished",
		"run_id", report.RunID,
		"due", due,
		"sent", report.Sent,
		"skipped", report.Skipped,
		"failed", len(report.Errors),
	)

	return report
}

// Deliver fetches, composes and sends one subscriber's digest right away,
// regardless of the send time.
func (s *Scheduler) Deliver(ctx context.Context, u *user.User, now time.Time) error {
	loc, err := u.Location()
	if err != nil {
		return err
	}
	return s.deliver(ctx, u, now, loc, uuid.NewString())
}

func (s *Scheduler) deliver(ctx context.Context, u *user.User, now time.Time, loc *time.Location, runID string) error {
	started := time.Now()

	items, err := s.send(ctx, u, Subject(now, loc))

	s.recorder.ObserveDelivery(time.Since(started), err == nil)
	ev := &models.DigestEvent{
		Type:  models.DigestEventSent,
		RunID: runID,
		Email: u.Email,
		Items: items,
		At:    time.Now().UTC(),
	}
	if err != nil {
		ev.Type = models.DigestEventFailed
		ev.Error = err.Error()
		s.recorder.IncDigest(metrics.ResultFailed)
		logger.Log.Errorw("digest delivery failed", "email", u.Email, "run_id", runID, "error", err)
	} else {
		s.recorder.IncDigest(metrics.ResultSent)
		logger.Log.Infow("digest sent", "email", u.Email, "run_id", runID, "items", items)
	}
	if s.events != nil {
		s.events.Enqueue(ev)
	}

	return err
}

func (s *Scheduler) send(ctx context.Context, u *user.User, subject string) (int, error) {
	sources := u.Sources
	if len(sources) == 0 {
		sources = s.defaultSources
	}

	var items []models.ContentItem
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		fetchCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		items = append(items, s.fetcher.Fetch(fetchCtx, source)...)
		cancel()
	}
	if len(items) > s.itemLimit {
		items = items[:s.itemLimit]
	}

	composeCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	body, err := s.composer.Compose(composeCtx, items)
	cancel()
	if err != nil {
		return len(items), fmt.Errorf("compose: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	if err := s.notifier.Send(sendCtx, u.Email, subject, body); err != nil {
		return len(items), fmt.Errorf("send: %w", err)
	}

	return len(items), nil
}
