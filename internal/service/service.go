package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/patric-chuzhbe/newsdigest/internal/conversation"
	"github.com/patric-chuzhbe/newsdigest/internal/db/storage"
	"github.com/patric-chuzhbe/newsdigest/internal/logger"
	"github.com/patric-chuzhbe/newsdigest/internal/metrics"
	"github.com/patric-chuzhbe/newsdigest/internal/models"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

const (
	invalidEmailText = "Please enter a valid email address."
	failureText      = "Sorry, something went wrong while saving your settings. Please try again."
)

type userKeeper interface {
	GetUser(ctx context.Context, email string) (*user.User, error)
	SaveUser(ctx context.Context, usr *user.User) error
	DeleteUser(ctx context.Context, email string) error
	ListUsers(ctx context.Context) ([]*user.User, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type userStorage interface {
	userKeeper
	pinger
}

type intentResolver interface {
	Resolve(ctx context.Context, message, email string) conversation.Intent
}

type digestScheduler interface {
	Tick(ctx context.Context, users []*user.User, now time.Time) models.DigestRunReport
	Deliver(ctx context.Context, u *user.User, now time.Time) error
}

// ErrInvalidEmail is returned for messages whose sender address does not
// look like an email.
var ErrInvalidEmail = errors.New("invalid email address")

// ErrDeliveryFailed wraps errors of an on-demand digest delivery.
var ErrDeliveryFailed = errors.New("digest delivery failed")

var ErrUserNotFound = storage.ErrUserNotFound

type Service struct {
	db        userStorage
	resolver  intentResolver
	machine   *conversation.Machine
	scheduler digestScheduler
	recorder  *metrics.Recorder
	validate  *validator.Validate
	now       func() time.Time
}

type Option func(*Service)

func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(
	db userStorage,
	resolver intentResolver,
	machine *conversation.Machine,
	scheduler digestScheduler,
	options ...Option,
) *Service {
	s := &Service{
		db:        db,
		resolver:  resolver,
		machine:   machine,
		scheduler: scheduler,
		validate:  validator.New(),
		now:       time.Now,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// ProcessMessage handles one inbound conversation message. The returned
// response always carries text for the sender, also when err is not nil.
// The record is persisted at most once per message.
func (s *Service) ProcessMessage(ctx context.Context, req models.ProcessRequest) (models.ProcessResponse, error) {
	email := strings.TrimSpace(req.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return models.ProcessResponse{Response: invalidEmailText}, ErrInvalidEmail
	}

	rec, err := s.db.GetUser(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		rec, err = nil, nil
	}
	if err != nil {
		return models.ProcessResponse{Response: failureText}, fmt.Errorf("load user %s: %w", email, err)
	}

	var in conversation.Intent = conversation.Help{}
	if rec != nil {
		in = s.resolver.Resolve(ctx, req.Message, email)
	}

	var pending *conversation.PendingConfirmation
	if req.ConfirmURL != "" {
		pending = &conversation.PendingConfirmation{URL: req.ConfirmURL}
	}

	out := s.machine.Apply(conversation.Turn{
		Email:   email,
		Record:  rec,
		Intent:  in,
		Message: req.Message,
		Pending: pending,
	})

	switch out.Effect {
	case conversation.EffectSave:
		err = s.db.SaveUser(ctx, out.User)
	case conversation.EffectDelete:
		err = s.db.DeleteUser(ctx, email)
	}
	if err != nil {
		return models.ProcessResponse{Response: failureText}, fmt.Errorf("%s user %s: %w", out.Effect, email, err)
	}

	s.recorder.IncMessage(in.Name(), out.Effect.String())
	if out.Err != nil {
		logger.Log.Debugw("message rejected", "email", email, "intent", in.Name(), "reason", out.Err)
	}

	resp := models.ProcessResponse{Response: out.Response}
	if out.Pending != nil {
		resp.ConfirmURL = out.Pending.URL
	}
	return resp, nil
}

// SendTestDigest delivers a digest to a subscriber immediately.
func (s *Service) SendTestDigest(ctx context.Context, email string) error {
	usr, err := s.db.GetUser(ctx, email)
	if err != nil {
		return err
	}
	if err := s.scheduler.Deliver(ctx, usr, s.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// RunDigests reads all subscribers once and runs one scheduler tick for
// the current instant.
func (s *Service) RunDigests(ctx context.Context) (models.DigestRunReport, error) {
	return s.RunDigestsAt(ctx, s.now())
}

// RunDigestsAt runs one scheduler tick with due checks made against at.
// Scheduled ticks pass their fire time, so a tick that starts late still
// serves the minute it was fired for.
func (s *Service) RunDigestsAt(ctx context.Context, at time.Time) (models.DigestRunReport, error) {
	users, err := s.db.ListUsers(ctx)
	if err != nil {
		return models.DigestRunReport{}, fmt.Errorf("list users: %w", err)
	}
	return s.scheduler.Tick(ctx, users, at), nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
