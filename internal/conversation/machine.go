// Package conversation applies resolved intents to a subscriber record.
// It performs no I/O: the caller persists the returned record according to
// the outcome's Effect.
package conversation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patric-chuzhbe/newsdigest/internal/sourceurl"
	"github.com/patric-chuzhbe/newsdigest/internal/user"
)

var (
	// ErrValidation marks turns rejected because of bad input (time,
	// timezone, unresolvable source text).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks turns that referenced something the subscriber
	// does not have.
	ErrNotFound = errors.New("not found")
)

// Effect tells the caller what to do with Outcome.User.
type Effect int

const (
	EffectNone Effect = iota
	EffectSave
	EffectDelete
)

func (e Effect) String() string {
	switch e {
	case EffectSave:
		return "save"
	case EffectDelete:
		return "delete"
	default:
		return "none"
	}
}

// PendingConfirmation is a proposed source awaiting the subscriber's yes.
// It travels with the response envelope and comes back with the next
// message; it is never persisted.
type PendingConfirmation struct {
	URL string `json:"url"`
}

// Outcome is the result of one conversation turn. Response is always set.
type Outcome struct {
	User     *user.User
	Effect   Effect
	Response string
	Pending  *PendingConfirmation
	Err      error
}

// Defaults are applied to records created on a first message.
type Defaults struct {
	Timezone string
	SendTime user.Clock
}

type Option func(*Machine)

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithDefaults overrides the settings of newly created records.
func WithDefaults(d Defaults) Option {
	return func(m *Machine) {
		m.defaults = d
	}
}

type Machine struct {
	now      func() time.Time
	defaults Defaults
}

func NewMachine(options ...Option) *Machine {
	m := &Machine{
		now: time.Now,
		defaults: Defaults{
			Timezone: user.DefaultTimezone,
			SendTime: user.MustParseClock(user.DefaultSendTime),
		},
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// Turn is one inbound message together with everything known about its
// sender.
type Turn struct {
	Email string
	// Record is nil for an email that has no subscription.
	Record *user.User
	Intent Intent
	// Message is the raw text as typed by the subscriber.
	Message string
	// Pending is the proposal returned by the previous AddSource turn, if
	// the caller kept it.
	Pending *PendingConfirmation
}

// Apply runs one turn. The turn's record is never modified; mutations
// happen on a copy returned in Outcome.User.
func (m *Machine) Apply(t Turn) Outcome {
	rec := t.Record
	if rec == nil {
		return m.welcome(t.Email)
	}

	switch intent := t.Intent.(type) {
	case AddSource:
		return m.addSource(rec, intent, t.Message)
	case ConfirmAddSource:
		return m.confirmAddSource(rec, t.Message, t.Pending)
	case RemoveSource:
		return m.removeSource(rec, intent)
	case ChangeTime:
		return m.changeTime(rec, intent)
	case SetTimezone:
		return m.setTimezone(rec, intent)
	case SetTimeAndTimezone:
		return m.setTimeAndTimezone(rec, intent)
	case ViewSources:
		return m.viewSources(rec)
	case Done:
		return unchanged(rec, doneText, nil)
	case Unsubscribe:
		return Outcome{User: nil, Effect: EffectDelete, Response: unsubscribeText}
	case Help:
		return unchanged(rec, helpText, nil)
	default:
		return unchanged(rec, helpText, nil)
	}
}

// welcome creates the record of a first-time sender. The message itself is
// not processed in this turn.
func (m *Machine) welcome(email string) Outcome {
	created := user.New(email, m.now())
	created.Timezone = m.defaults.Timezone
	created.SendTime = m.defaults.SendTime
	return Outcome{
		User:     created,
		Effect:   EffectSave,
		Response: fmt.Sprintf(welcomeFmt, created.SendTime, created.Timezone),
	}
}

func (m *Machine) addSource(rec *user.User, in AddSource, raw string) Outcome {
	text := in.Source
	if strings.TrimSpace(text) == "" {
		text = raw
	}
	candidate, ok := sourceurl.Resolve(text)
	if !ok {
		return unchanged(rec, addSourceUnresolvedText, fmt.Errorf("%w: unresolvable source %q", ErrValidation, text))
	}
	out := unchanged(rec, fmt.Sprintf(addSourceConfirmFmt, candidate), nil)
	out.Pending = &PendingConfirmation{URL: candidate}
	return out
}

func (m *Machine) confirmAddSource(rec *user.User, raw string, pending *PendingConfirmation) Outcome {
	var candidate string
	if pending != nil && pending.URL != "" {
		candidate = pending.URL
	} else if extracted, ok := sourceurl.ExtractURL(raw); ok {
		candidate = extracted
	}
	if candidate == "" {
		return unchanged(rec, confirmMissingText, fmt.Errorf("%w: nothing to confirm", ErrValidation))
	}
	if !sourceurl.Valid(candidate) {
		return unchanged(rec, confirmInvalidText, fmt.Errorf("%w: invalid source URL %q", ErrValidation, candidate))
	}

	name := sourceurl.NameFromURL(candidate)
	if rec.HasSourceURL(candidate) {
		return unchanged(rec, fmt.Sprintf(sourceAlreadyPresentFmt, name), nil)
	}

	next := rec.Clone()
	next.Sources = append(next.Sources, user.SourceRef{Name: name, URL: candidate})
	return Outcome{User: next, Effect: EffectSave, Response: fmt.Sprintf(sourceAddedFmt, name)}
}

func (m *Machine) removeSource(rec *user.User, in RemoveSource) Outcome {
	needle := strings.ToLower(strings.TrimSpace(in.Source))
	if needle == "" {
		return unchanged(rec, removeMissingText, fmt.Errorf("%w: no source named", ErrValidation))
	}
	for i, s := range rec.Sources {
		if strings.Contains(strings.ToLower(s.Name), needle) || strings.Contains(strings.ToLower(s.URL), needle) {
			next := rec.Clone()
			next.Sources = append(next.Sources[:i:i], next.Sources[i+1:]...)
			return Outcome{User: next, Effect: EffectSave, Response: fmt.Sprintf(sourceRemovedFmt, s.Name)}
		}
	}
	return unchanged(rec, fmt.Sprintf(removeNotFoundFmt, in.Source), fmt.Errorf("%w: source %q", ErrNotFound, in.Source))
}

func (m *Machine) changeTime(rec *user.User, in ChangeTime) Outcome {
	clock, err := user.ParseClock(in.Time)
	if err != nil {
		return unchanged(rec, timeInvalidText, fmt.Errorf("%w: %w", ErrValidation, err))
	}
	next := rec.Clone()
	next.SendTime = clock
	return Outcome{User: next, Effect: EffectSave, Response: fmt.Sprintf(timeChangedFmt, clock)}
}

func (m *Machine) setTimezone(rec *user.User, in SetTimezone) Outcome {
	tz, err := user.ValidateTimezone(in.Timezone)
	if err != nil {
		return unchanged(rec, timezoneInvalidText, fmt.Errorf("%w: %w", ErrValidation, err))
	}
	next := rec.Clone()
	next.Timezone = tz
	return Outcome{User: next, Effect: EffectSave, Response: fmt.Sprintf(timezoneSetFmt, tz)}
}

func (m *Machine) setTimeAndTimezone(rec *user.User, in SetTimeAndTimezone) Outcome {
	clock, clockErr := user.ParseClock(in.Time)
	tz, tzErr := user.ValidateTimezone(in.Timezone)
	if err := errors.Join(clockErr, tzErr); err != nil {
		return unchanged(rec, timeAndTimezoneInvalidText, fmt.Errorf("%w: %w", ErrValidation, err))
	}
	next := rec.Clone()
	next.SendTime = clock
	next.Timezone = tz
	return Outcome{User: next, Effect: EffectSave, Response: fmt.Sprintf(timeAndTimezoneSetFmt, clock, tz)}
}

func (m *Machine) viewSources(rec *user.User) Outcome {
	if len(rec.Sources) == 0 {
		return unchanged(rec, fmt.Sprintf(viewDefaultsFmt, rec.SendTime, rec.Timezone), nil)
	}
	names := make([]string, 0, len(rec.Sources))
	for _, s := range rec.Sources {
		names = append(names, s.Name)
	}
	return unchanged(rec, fmt.Sprintf(viewSourcesFmt, strings.Join(names, ", "), rec.SendTime, rec.Timezone), nil)
}

func unchanged(rec *user.User, response string, err error) Outcome {
	return Outcome{User: rec, Effect: EffectNone, Response: response, Err: err}
}
