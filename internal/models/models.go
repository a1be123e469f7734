package models

import "time"

type ProcessRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
	// ConfirmURL echoes the ConfirmURL of the previous response so that a
	// following "yes" can confirm it.
	ConfirmURL string `json:"confirm_url,omitempty"`
}

type ProcessResponse struct {
	Response   string `json:"response"`
	ConfirmURL string `json:"confirm_url,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CronResponse struct {
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
	Report    DigestRunReport `json:"report"`
}

// ContentItem is one piece of scraped and summarized content.
type ContentItem struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Link    string `json:"link,omitempty"`
}

// DigestBody is the composed email content. HTML is what gets mailed,
// Text is the markdown source used for plain-text parts and previews.
type DigestBody struct {
	Text string
	HTML string
}

// DigestRunReport summarizes one scheduler tick.
type DigestRunReport struct {
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Attempted int               `json:"attempted"`
	Sent      int               `json:"sent"`
	Skipped   int               `json:"skipped"`
	Errors    map[string]string `json:"errors,omitempty"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeSQLite
	StorageTypeFile
	StorageTypeMemory
)

const (
	DigestEventSent   = "digest.sent"
	DigestEventFailed = "digest.failed"
)

// DigestEvent is published after every delivery attempt.
type DigestEvent struct {
	Type  string    `json:"type"`
	RunID string    `json:"run_id"`
	Email string    `json:"email"`
	Items int       `json:"items"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}
