package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/patric-chuzhbe/newsdigest/internal/logger"
)

// DefaultCron fires every minute.
const DefaultCron = "* * * * *"

// TickFunc handles one scheduled fire. firedAt is the instant the fire
// happened, which is the moment due checks must be made against.
type TickFunc func(ctx context.Context, firedAt time.Time)

// Runner triggers a tick function on a cron schedule. Fires never wait for
// or get dropped because of a tick that is still running, so a slow minute
// cannot swallow the subscribers due in the next one.
type Runner struct {
	scheduler gocron.Scheduler
	tick      TickFunc
	ctx       context.Context
	now       func() time.Time
}

func NewRunner(cronExpr string, tick TickFunc) (*Runner, error) {
	if cronExpr == "" {
		cronExpr = DefaultCron
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	r := &Runner{
		scheduler: s,
		tick:      tick,
		ctx:       context.Background(),
		now:       time.Now,
	}

	_, err = s.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(r.run),
		gocron.WithName("digest-tick"),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create digest job for %q: %w", cronExpr, err)
	}

	return r, nil
}

// Start begins scheduling. ctx is handed to every tick.
func (r *Runner) Start(ctx context.Context) {
	r.ctx = ctx
	logger.Log.Infow("Starting digest scheduler")
	r.scheduler.Start()
}

// Shutdown stops scheduling and waits for running ticks.
func (r *Runner) Shutdown() error {
	logger.Log.Infow("Stopping digest scheduler")
	return r.scheduler.Shutdown()
}

func (r *Runner) run() {
	firedAt := r.now()
	if err := r.ctx.Err(); err != nil {
		return
	}
	r.tick(r.ctx, firedAt)
}
