// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package delivery

import (
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/plexdigest/internal/config"
)

func testSMTPConfig() config.SMTPConfig {
	return config.SMTPConfig{
		Host:        "mail.example.com",
		Port:        587,
		FromAddress: "digest@example.com",
		FromName:    "Movie Night",
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	msg := &Message{
		Subject:      "Weekly Digest",
		HTML:         "<p>hello</p>",
		To:           []string{"a@example.com", "b@example.com"},
		Bcc:          []string{"hidden@example.com"},
		NewsletterID: "nl-1",
		Mode:         "template",
	}

	raw := buildMessage(testSMTPConfig(), msg, "id-123@example.com")

	for _, want := range []string{
		"From: Movie Night <digest@example.com>\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: Weekly Digest\r\n",
		"Message-ID: <id-123@example.com>\r\n",
		"X-Plexdigest-Newsletter-ID: nl-1\r\n",
		"X-Plexdigest-Mode: template\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing header %q", want)
		}
	}
	if strings.Contains(raw, "hidden@example.com") {
		t.Error("bcc recipient leaked into headers")
	}
}

func TestBuildMessageBccOnlyUsesFromAsTo(t *testing.T) {
	msg := &Message{Subject: "s", HTML: "<p>x</p>", Bcc: []string{"hidden@example.com"}}
	raw := buildMessage(testSMTPConfig(), msg, "id@example.com")
	if !strings.Contains(raw, "To: digest@example.com\r\n") {
		t.Error("bcc-only message should carry the from address in To")
	}
}

func TestBuildMessageMultipart(t *testing.T) {
	msg := &Message{Subject: "s", HTML: "<p>x</p>", Text: "x"}
	raw := buildMessage(testSMTPConfig(), msg, "id@example.com")
	if !strings.Contains(raw, "multipart/alternative") {
		t.Error("expected multipart message when both bodies are set")
	}
	if !strings.Contains(raw, "text/plain; charset=UTF-8") || !strings.Contains(raw, "text/html; charset=UTF-8") {
		t.Error("expected both body parts")
	}
}

func TestNewMessageIDDomain(t *testing.T) {
	id := newMessageID("digest@example.com")
	if !strings.HasSuffix(id, "@example.com") {
		t.Errorf("message id %q should end with sender domain", id)
	}
	if newMessageID("broken") == newMessageID("broken") {
		t.Error("message ids must be unique")
	}
	if !strings.HasSuffix(newMessageID("broken"), "@plexdigest.local") {
		t.Error("malformed sender should fall back to the default domain")
	}
}

func TestWrapSendErrorClassification(t *testing.T) {
	tests := []struct {
		err  string
		code string
	}{
		{"535 authentication failed", ErrCodeAuth},
		{"dial tcp: i/o timeout", ErrCodeTimeout},
		{"connection refused", ErrCodeConnection},
		{"550 mailbox unavailable", ErrCodeRecipient},
		{"451 try again later", ErrCodeUnknown},
	}
	for _, tt := range tests {
		got := wrapSendError(errors.New(tt.err))
		if got.Code != tt.code {
			t.Errorf("wrapSendError(%q).Code = %q, want %q", tt.err, got.Code, tt.code)
		}
	}
}

func TestSendErrorTransient(t *testing.T) {
	if !(&SendError{Code: ErrCodeConnection}).Transient() {
		t.Error("connection errors should be transient")
	}
	if (&SendError{Code: ErrCodeAuth}).Transient() {
		t.Error("auth errors should not be transient")
	}
}
