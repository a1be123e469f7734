// Package notifier delivers composed digests by email.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/patric-chuzhbe/newsdigest/internal/logger"
	"github.com/patric-chuzhbe/newsdigest/internal/models"
)

const (
	DefaultResendBaseURL = "https://api.resend.com"
	DefaultFrom          = "News Digest <digest@resend.dev>"

	previewLength = 200
)

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendError struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// ResendNotifier sends through the Resend HTTP API.
type ResendNotifier struct {
	http *resty.Client
	from string
}

func NewResendNotifier(baseURL, apiKey, from string) *ResendNotifier {
	if baseURL == "" {
		baseURL = DefaultResendBaseURL
	}
	if from == "" {
		from = DefaultFrom
	}
	return &ResendNotifier{
		http: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(apiKey).
			SetTimeout(30 * time.Second),
		from: from,
	}
}

func (n *ResendNotifier) Send(ctx context.Context, address, subject string, body models.DigestBody) error {
	var failure resendError
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(resendRequest{
			From:    n.from,
			To:      []string{address},
			Subject: subject,
			HTML:    body.HTML,
			Text:    body.Text,
		}).
		SetError(&failure).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("resend request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("resend: status %d: %s", resp.StatusCode(), failure.Message)
	}

	return nil
}

// LogNotifier only logs what would have been sent. It is used when no email
// provider is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(_ context.Context, address, subject string, body models.DigestBody) error {
	logger.Log.Infow(
		"Would send email to "+address,
		"subject", subject,
		"preview", Preview(body.HTML),
	)
	return nil
}

// Preview returns the first 200 characters of s.
func Preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewLength {
		return s
	}
	return string(runes[:previewLength])
}
