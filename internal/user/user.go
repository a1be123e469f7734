// Package user defines the subscriber record managed through conversation
// and read by the digest scheduler.
package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimezone is applied to every newly created subscriber.
	DefaultTimezone = "America/Los_Angeles"

	// DefaultSendTime is the local delivery time of a new subscriber.
	DefaultSendTime = "08:00"
)

var (
	ErrInvalidClock    = errors.New("invalid time, expected HH:MM")
	ErrInvalidTimezone = errors.New("invalid timezone")
)

// SourceRef is a named URL the subscriber wants summarized.
type SourceRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// User is a digest subscriber keyed by email.
type User struct {
	Email     string      `json:"email"`
	Sources   []SourceRef `json:"sources"`
	Timezone  string      `json:"timezone"`
	SendTime  Clock       `json:"send_time"`
	CreatedAt time.Time   `json:"created_at"`
}

// New builds a subscriber with default settings and no sources.
func New(email string, now time.Time) *User {
	return &User{
		Email:     email,
		Sources:   []SourceRef{},
		Timezone:  DefaultTimezone,
		SendTime:  MustParseClock(DefaultSendTime),
		CreatedAt: now.UTC(),
	}
}

// Clone returns a deep copy so callers may mutate it freely.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Sources = make([]SourceRef, len(u.Sources))
	copy(c.Sources, u.Sources)
	return &c
}

// HasSourceURL reports whether url is already subscribed (exact match).
func (u *User) HasSourceURL(url string) bool {
	for _, s := range u.Sources {
		if s.URL == url {
			return true
		}
	}
	return false
}

// Location resolves the subscriber's timezone.
func (u *User) Location() (*time.Location, error) {
	return time.LoadLocation(u.Timezone)
}

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock accepts strictly "HH:MM" in 24-hour notation.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("%w: invalid hour in %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("%w: invalid minute in %q", ErrInvalidClock, s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// MustParseClock is ParseClock for constants.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String formats the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Matches reports whether t reads exactly this hour and minute.
func (c Clock) Matches(t time.Time) bool {
	return t.Hour() == c.Hour && t.Minute() == c.Minute
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ValidateTimezone checks that tz is a resolvable IANA location and
// returns its canonical name.
func ValidateTimezone(tz string) (string, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return loc.String(), nil
}
