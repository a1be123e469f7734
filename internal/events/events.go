// Package events batches digest outcome events and publishes them to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/patric-chuzhbe/newsdigest/internal/logger"
	"github.com/patric-chuzhbe/newsdigest/internal/models"
)

const DefaultSubjectPrefix = "newsdigest"

type publisher interface {
	Publish(subject string, data []byte) error
}

type Dispatcher struct {
	queue         chan *models.DigestEvent
	pub           publisher
	subjectPrefix string
	flushInterval time.Duration
	errorChannel  chan error
}

func New(
	pub publisher,
	subjectPrefix string,
	channelCapacity int,
	flushInterval time.Duration,
) *Dispatcher {
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &Dispatcher{
		pub:           pub,
		subjectPrefix: subjectPrefix,
		queue:         make(chan *models.DigestEvent, channelCapacity),
		flushInterval: flushInterval,
		errorChannel:  make(chan error, channelCapacity),
	}
}

// Connect dials the NATS server at url.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(
		url,
		nats.Name("newsdigest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

func (d *Dispatcher) ListenErrors(callback func(error)) {
	go func() {
		for err := range d.errorChannel {
			callback(err)
		}
	}()
}

// Enqueue never blocks; events that do not fit into the queue are dropped.
func (d *Dispatcher) Enqueue(ev *models.DigestEvent) {
	if d == nil || ev == nil {
		return
	}
	select {
	case d.queue <- ev:
	default:
		logger.Log.Warnw("event queue is full, dropping event", "type", ev.Type, "email", ev.Email)
	}
}

// Run publishes queued events every flushInterval until ctx is done, then
// flushes whatever is left.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	var pending []*models.DigestEvent

	for {
		select {
		case ev := <-d.queue:
			pending = append(pending, ev)
		case <-ticker.C:
			pending = d.flush(pending)
		case <-ctx.Done():
			for {
				select {
				case ev := <-d.queue:
					pending = append(pending, ev)
				default:
					d.flush(pending)
					return
				}
			}
		}
	}
}

// flush returns the events that could not be published.
func (d *Dispatcher) flush(pending []*models.DigestEvent) []*models.DigestEvent {
	if len(pending) == 0 {
		return nil
	}

	var failed []*models.DigestEvent
	for _, ev := range pending {
		data, err := json.Marshal(ev)
		if err != nil {
			d.reportError(fmt.Errorf("marshal %s event: %w", ev.Type, err))
			continue
		}
		if err := d.pub.Publish(d.subjectPrefix+"."+ev.Type, data); err != nil {
			d.reportError(fmt.Errorf("publish %s event: %w", ev.Type, err))
			failed = append(failed, ev)
		}
	}
	logger.Log.Infof("published %d digest events", len(pending)-len(failed))

	return failed
}

func (d *Dispatcher) reportError(err error) {
	select {
	case d.errorChannel <- err:
	default:
		logger.Log.Errorw("event error dropped", "error", err)
	}
}
