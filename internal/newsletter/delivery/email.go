// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

// Package delivery implements the SMTP mail transport.
package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/plexdigest/internal/config"
)

// Error codes for failed handshakes and sends.
const (
	ErrCodeAuth       = "auth_failed"
	ErrCodeConnection = "connection_failed"
	ErrCodeTimeout    = "timeout"
	ErrCodeRecipient  = "recipient_rejected"
	ErrCodeUnknown    = "unknown"
)

// SendError wraps a transport failure with a classification code.
type SendError struct {
	Code string
	Err  error
}

func (e *SendError) Error() string { return fmt.Sprintf("smtp %s: %v", e.Code, e.Err) }

func (e *SendError) Unwrap() error { return e.Err }

// Transient reports whether a retry could plausibly succeed.
func (e *SendError) Transient() bool {
	switch e.Code {
	case ErrCodeConnection, ErrCodeTimeout:
		return true
	default:
		return false
	}
}

// Message is one outbound email.
type Message struct {
	Subject string
	HTML    string
	Text    string
	To      []string
	Bcc     []string

	// NewsletterID and Mode are stamped into tracing headers.
	NewsletterID string
	Mode         string
}

// SendInfo reports the per-recipient outcome of an accepted send.
type SendInfo struct {
	MessageID string
	Accepted  []string
	Rejected  []string
}

// Transport is the mail delivery interface the dispatcher talks to.
type Transport interface {
	// Verify performs a full handshake (connect, TLS, auth) without
	// sending anything.
	Verify(ctx context.Context, cfg config.SMTPConfig) error

	// Send delivers one message. It fails only when no recipient was
	// accepted; partial rejections are reported in SendInfo.
	Send(ctx context.Context, cfg config.SMTPConfig, msg *Message) (*SendInfo, error)
}

// SMTPTransport is the production Transport over net/smtp.
type SMTPTransport struct {
	dialTimeout time.Duration
}

// NewSMTPTransport creates a transport with the default connect timeout.
func NewSMTPTransport() *SMTPTransport {
	return &SMTPTransport{dialTimeout: 30 * time.Second}
}

// Verify connects, negotiates TLS and authentication per the configuration,
// and disconnects.
func (t *SMTPTransport) Verify(ctx context.Context, cfg config.SMTPConfig) error {
	client, err := t.handshake(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()
	if err := client.Quit(); err != nil {
		return wrapSendError(fmt.Errorf("quit: %w", err))
	}
	return nil
}

// Send performs the handshake and delivers the message to every To and Bcc
// recipient. Recipients the server rejects at RCPT time are collected; the
// send proceeds as long as at least one recipient was accepted.
func (t *SMTPTransport) Send(ctx context.Context, cfg config.SMTPConfig, msg *Message) (*SendInfo, error) {
	client, err := t.handshake(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	if err := client.Mail(cfg.FromAddress); err != nil {
		return nil, wrapSendError(fmt.Errorf("set sender: %w", err))
	}

	info := &SendInfo{MessageID: newMessageID(cfg.FromAddress)}
	for _, rcpt := range append(append([]string{}, msg.To...), msg.Bcc...) {
		if err := client.Rcpt(rcpt); err != nil {
			info.Rejected = append(info.Rejected, rcpt)
			continue
		}
		info.Accepted = append(info.Accepted, rcpt)
	}
	if len(info.Accepted) == 0 {
		return nil, &SendError{Code: ErrCodeRecipient, Err: fmt.Errorf("all %d recipients rejected", len(info.Rejected))}
	}

	w, err := client.Data()
	if err != nil {
		return nil, wrapSendError(fmt.Errorf("start message: %w", err))
	}
	if _, err := w.Write([]byte(buildMessage(cfg, msg, info.MessageID))); err != nil {
		return nil, wrapSendError(fmt.Errorf("write message: %w", err))
	}
	if err := w.Close(); err != nil {
		return nil, wrapSendError(fmt.Errorf("close message: %w", err))
	}

	// The message is committed after DATA; a failed QUIT is not a failed send.
	_ = client.Quit()
	return info, nil
}

// handshake dials the server and completes TLS and authentication.
func (t *SMTPTransport) handshake(ctx context.Context, cfg config.SMTPConfig) (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	dialer := &net.Dialer{Timeout: t.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, wrapSendError(fmt.Errorf("connect to %s: %w", addr, err))
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, wrapSendError(fmt.Errorf("smtp handshake: %w", err))
	}

	if cfg.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			_ = client.Close()
			return nil, wrapSendError(fmt.Errorf("start tls: %w", err))
		}
	}

	if cfg.User != "" && cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, &SendError{Code: ErrCodeAuth, Err: err}
		}
	}
	return client, nil
}

// buildMessage constructs the RFC 5322 message with headers. Bcc recipients
// are never written into headers; when the To list is empty the From address
// stands in as the visible To so the header block stays well formed.
func buildMessage(cfg config.SMTPConfig, msg *Message, messageID string) string {
	var b strings.Builder

	fromName := cfg.FromName
	if fromName == "" {
		fromName = "Plexdigest"
	}

	toHeader := strings.Join(msg.To, ", ")
	if toHeader == "" {
		toHeader = cfg.FromAddress
	}

	b.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, cfg.FromAddress))
	b.WriteString(fmt.Sprintf("To: %s\r\n", toHeader))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z)))
	b.WriteString(fmt.Sprintf("Message-ID: <%s>\r\n", messageID))
	if msg.NewsletterID != "" {
		b.WriteString(fmt.Sprintf("X-Plexdigest-Newsletter-ID: %s\r\n", msg.NewsletterID))
	}
	if msg.Mode != "" {
		b.WriteString(fmt.Sprintf("X-Plexdigest-Mode: %s\r\n", msg.Mode))
	}
	b.WriteString("MIME-Version: 1.0\r\n")

	hasHTML := msg.HTML != ""
	hasText := msg.Text != ""
	switch {
	case hasHTML && hasText:
		boundary := fmt.Sprintf("boundary_%d", time.Now().UnixNano())
		b.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary))

		b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.Text)
		b.WriteString("\r\n")

		b.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.HTML)
		b.WriteString("\r\n")

		b.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	case hasHTML:
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.HTML)
	default:
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(msg.Text)
	}

	return b.String()
}

// newMessageID builds a unique Message-ID scoped to the sending domain.
func newMessageID(fromAddress string) string {
	domain := "plexdigest.local"
	if at := strings.LastIndex(fromAddress, "@"); at >= 0 && at < len(fromAddress)-1 {
		domain = fromAddress[at+1:]
	}
	return uuid.NewString() + "@" + domain
}

// wrapSendError classifies an error by message shape, mirroring how SMTP
// servers phrase their rejections.
func wrapSendError(err error) *SendError {
	s := strings.ToLower(err.Error())
	code := ErrCodeUnknown
	switch {
	case strings.Contains(s, "auth"):
		code = ErrCodeAuth
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline"):
		code = ErrCodeTimeout
	case strings.Contains(s, "connect"), strings.Contains(s, "connection"), strings.Contains(s, "refused"):
		code = ErrCodeConnection
	case strings.Contains(s, "recipient"), strings.Contains(s, "mailbox"):
		code = ErrCodeRecipient
	}
	return &SendError{Code: code, Err: err}
}
