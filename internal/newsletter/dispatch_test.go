// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package newsletter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tomtom215/plexdigest/internal/config"
	"github.com/tomtom215/plexdigest/internal/models"
	"github.com/tomtom215/plexdigest/internal/newsletter/delivery"
)

type fakeConfigProvider struct {
	cfg *config.Config
}

func (f *fakeConfigProvider) Config() *config.Config { return f.cfg }

type fakeDispatchStore struct {
	templates  map[string]*models.Template
	recipients []models.Recipient
	recErr     error
}

func (f *fakeDispatchStore) GetTemplate(id string) (*models.Template, error) {
	tpl, ok := f.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s not found", id)
	}
	return tpl, nil
}

func (f *fakeDispatchStore) Recipients() ([]models.Recipient, error) {
	return f.recipients, f.recErr
}

type fakeRenderer struct {
	lastHTML string
	lastDays int
}

func (f *fakeRenderer) Render(ctx context.Context, templateHTML string, lookbackDays int) string {
	f.lastHTML = templateHTML
	f.lastDays = lookbackDays
	return "[rendered " + templateHTML + "]"
}

type fakeTransport struct {
	verifyErr   error
	sendErr     error
	verifyCalls int
	sendCalls   int
	lastMsg     *delivery.Message
}

func (f *fakeTransport) Verify(ctx context.Context, cfg config.SMTPConfig) error {
	f.verifyCalls++
	return f.verifyErr
}

func (f *fakeTransport) Send(ctx context.Context, cfg config.SMTPConfig, msg *delivery.Message) (*delivery.SendInfo, error) {
	f.sendCalls++
	f.lastMsg = msg
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &delivery.SendInfo{
		MessageID: "mid@example.com",
		Accepted:  append(append([]string{}, msg.To...), msg.Bcc...),
	}, nil
}

func dispatchFixture() (*Dispatcher, *fakeDispatchStore, *fakeRenderer, *fakeTransport) {
	cfg := &config.Config{}
	cfg.SMTP = config.SMTPConfig{Host: "mail.example.com", Port: 587, FromAddress: "digest@example.com"}
	cfg.Newsletter.LookbackDays = 7

	store := &fakeDispatchStore{templates: map[string]*models.Template{
		"tpl-1": {ID: "tpl-1", Name: "Weekly", HTML: "{{CARD_SERVER_TOTALS}}"},
	}}
	renderer := &fakeRenderer{}
	transport := &fakeTransport{}
	return NewDispatcher(&fakeConfigProvider{cfg: cfg}, store, renderer, transport), store, renderer, transport
}

func weeklyNewsletter() *models.Newsletter {
	return &models.Newsletter{
		ID:         "nl-1",
		Name:       "Movie Night",
		TemplateID: "tpl-1",
		Recipients: []string{"a@example.com", "b@example.com"},
		Enabled:    true,
	}
}

func TestSendRequiresSMTP(t *testing.T) {
	d, _, _, transport := dispatchFixture()
	d.cfg = &fakeConfigProvider{cfg: &config.Config{}}

	_, err := d.Send(context.Background(), weeklyNewsletter(), SendOptions{})
	if !errors.Is(err, ErrSMTPNotConfigured) {
		t.Fatalf("err = %v, want ErrSMTPNotConfigured", err)
	}
	if transport.verifyCalls != 0 || transport.sendCalls != 0 {
		t.Error("transport must not be touched without smtp settings")
	}
}

func TestSendNewsletterRecipientsGoToBcc(t *testing.T) {
	d, _, _, transport := dispatchFixture()

	res, err := d.Send(context.Background(), weeklyNewsletter(), SendOptions{})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(transport.lastMsg.To) != 0 {
		t.Errorf("newsletter recipients should ride bcc, got to=%v", transport.lastMsg.To)
	}
	if len(transport.lastMsg.Bcc) != 2 {
		t.Errorf("bcc = %v, want 2 entries", transport.lastMsg.Bcc)
	}
	if res.BccCount != 2 || res.ToCount != 0 {
		t.Errorf("result counts = to %d bcc %d", res.ToCount, res.BccCount)
	}
	if res.MessageID == "" || !res.OK {
		t.Errorf("result = %+v", res)
	}
}

func TestSendOverridesBeatNewsletterList(t *testing.T) {
	d, _, _, transport := dispatchFixture()

	_, err := d.Send(context.Background(), weeklyNewsletter(), SendOptions{
		To:  []string{"Override@Example.com", "override@example.com", "bogus"},
		Bcc: []string{"quiet@example.com"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(transport.lastMsg.To) != 1 || transport.lastMsg.To[0] != "override@example.com" {
		t.Errorf("to = %v, want deduped lowercase override", transport.lastMsg.To)
	}
	if len(transport.lastMsg.Bcc) != 1 {
		t.Errorf("bcc = %v", transport.lastMsg.Bcc)
	}
}

func TestSendManualFallsBackToGlobalRecipients(t *testing.T) {
	d, store, _, transport := dispatchFixture()
	store.recipients = []models.Recipient{{Email: "global@example.com"}}

	nl := weeklyNewsletter()
	nl.Recipients = nil

	if _, err := d.Send(context.Background(), nl, SendOptions{Manual: true}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(transport.lastMsg.Bcc) != 1 || transport.lastMsg.Bcc[0] != "global@example.com" {
		t.Errorf("bcc = %v, want global fallback", transport.lastMsg.Bcc)
	}

	// Scheduled sends never fall back.
	if _, err := d.Send(context.Background(), nl, SendOptions{}); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("scheduled send err = %v, want ErrNoRecipients", err)
	}
}

func TestSendDryRun(t *testing.T) {
	d, _, _, transport := dispatchFixture()

	res, err := d.Send(context.Background(), weeklyNewsletter(), SendOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if transport.verifyCalls != 1 {
		t.Errorf("verifyCalls = %d, dry run must still verify the transport", transport.verifyCalls)
	}
	if transport.sendCalls != 0 {
		t.Error("dry run must not send")
	}
	if !res.DryRun || res.Summary == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Summary.Subject != "Newsletter: Movie Night" || res.Summary.BccCount != 2 {
		t.Errorf("summary = %+v", res.Summary)
	}
	if res.Accepted != nil || res.Rejected != nil {
		t.Error("dry run must not report per-recipient outcomes")
	}
}

func TestSendDryRunSurfacesVerifyFailure(t *testing.T) {
	d, _, _, transport := dispatchFixture()
	transport.verifyErr = errors.New("dial tcp: connection refused")

	res, err := d.Send(context.Background(), weeklyNewsletter(), SendOptions{DryRun: true})
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("err = %v, want ErrVerificationFailed", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil on a failed verification", res)
	}
	if transport.sendCalls != 0 {
		t.Error("send must not run after failed verification")
	}
}

func TestSendVerifyFailureBlocksSend(t *testing.T) {
	d, _, _, transport := dispatchFixture()
	transport.verifyErr = errors.New("535 bad credentials")

	_, err := d.Send(context.Background(), weeklyNewsletter(), SendOptions{})
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("err = %v, want ErrVerificationFailed", err)
	}
	if transport.sendCalls != 0 {
		t.Error("send must not run after failed verification")
	}
}

func TestSendRendersTemplateWithLookback(t *testing.T) {
	d, _, renderer, transport := dispatchFixture()

	nl := weeklyNewsletter()
	nl.LookbackDays = 14

	if _, err := d.Send(context.Background(), nl, SendOptions{}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if renderer.lastHTML != "{{CARD_SERVER_TOTALS}}" || renderer.lastDays != 14 {
		t.Errorf("renderer called with %q days=%d", renderer.lastHTML, renderer.lastDays)
	}
	if !strings.Contains(transport.lastMsg.HTML, "[rendered ") {
		t.Error("rendered body should be wrapped into the message")
	}
	if !strings.Contains(transport.lastMsg.HTML, "font-family") {
		t.Error("body should be wrapped in the outer container")
	}
	if transport.lastMsg.NewsletterID != "nl-1" || transport.lastMsg.Mode != models.ModeTemplate {
		t.Errorf("message metadata = %+v", transport.lastMsg)
	}
}

func TestSendMissingTemplatePlaceholder(t *testing.T) {
	d, _, _, transport := dispatchFixture()

	nl := weeklyNewsletter()
	nl.TemplateID = "missing"

	if _, err := d.Send(context.Background(), nl, SendOptions{}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(transport.lastMsg.HTML, "No template selected.") {
		t.Error("missing template should send the placeholder body")
	}
}

func TestSendRawMode(t *testing.T) {
	d, _, renderer, transport := dispatchFixture()

	_, err := d.Send(context.Background(), weeklyNewsletter(), SendOptions{
		Raw:     true,
		Subject: "Ad hoc",
		HTML:    "<p>raw body</p>",
		Text:    "raw body",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if renderer.lastHTML != "" {
		t.Error("raw mode must not render templates")
	}
	if !strings.Contains(transport.lastMsg.HTML, "<p>raw body</p>") || transport.lastMsg.Text != "raw body" {
		t.Errorf("message = %+v", transport.lastMsg)
	}
	if transport.lastMsg.Subject != "Ad hoc" || transport.lastMsg.Mode != models.ModeRaw {
		t.Errorf("message = %+v", transport.lastMsg)
	}
}

func TestEffectiveLookback(t *testing.T) {
	tplDays := 30
	tpl := &models.Template{LookbackDays: &tplDays}

	if got := effectiveLookback(&models.Newsletter{LookbackDays: 14}, tpl, 7); got != 14 {
		t.Errorf("newsletter override = %d, want 14", got)
	}
	if got := effectiveLookback(&models.Newsletter{}, tpl, 7); got != 30 {
		t.Errorf("template override = %d, want 30", got)
	}
	if got := effectiveLookback(&models.Newsletter{}, &models.Template{}, 7); got != 7 {
		t.Errorf("default = %d, want 7", got)
	}
	if got := effectiveLookback(&models.Newsletter{LookbackDays: 500}, nil, 0); got != 7 {
		t.Errorf("out-of-range everywhere = %d, want fallback 7", got)
	}
}
