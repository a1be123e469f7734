package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	netmail "net/mail"
	"net/smtp"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/patric-chuzhbe/newsdigest/internal/models"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends multipart/alternative messages through a plain SMTP
// relay.
type SMTPNotifier struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
	now      func() time.Time
}

func NewSMTPNotifier(addr, username, password, from string) (*SMTPNotifier, error) {
	if from == "" {
		from = DefaultFrom
	}
	if _, err := netmail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}

	n := &SMTPNotifier{
		addr:     addr,
		from:     from,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
	if username != "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP address %q: %w", addr, err)
		}
		n.auth = smtp.PlainAuth("", username, password, host)
	}
	return n, nil
}

func (n *SMTPNotifier) Send(ctx context.Context, address, subject string, body models.DigestBody) error {
	sender, err := netmail.ParseAddress(n.from)
	if err != nil {
		return err
	}
	msg, err := buildMessage(sender, address, subject, body, n.now())
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- n.sendMail(n.addr, n.auth, sender.Address, []string{address}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", address, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from *netmail.Address, to, subject string, body models.DigestBody, date time.Time) ([]byte, error) {
	recipient, err := netmail.ParseAddress(to)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{recipient})
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	if err := writePart(tw, "text/plain", body.Text); err != nil {
		return nil, err
	}
	if err := writePart(tw, "text/html", body.HTML); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writePart(tw *mail.InlineWriter, contentType, content string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(ph)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, content); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
