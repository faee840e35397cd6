// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package newsletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/plexdigest/internal/config"
	"github.com/tomtom215/plexdigest/internal/logging"
	"github.com/tomtom215/plexdigest/internal/metrics"
	"github.com/tomtom215/plexdigest/internal/models"
	"github.com/tomtom215/plexdigest/internal/newsletter/delivery"
	"github.com/tomtom215/plexdigest/internal/store"
)

// Dispatch precondition failures. Callers match these with errors.Is to map
// them onto API responses.
var (
	ErrSMTPNotConfigured  = errors.New("smtp is not configured")
	ErrNoRecipients       = errors.New("no recipients resolved")
	ErrVerificationFailed = errors.New("smtp verification failed")
)

const missingTemplateHTML = `<div style="opacity:.7">No template selected.</div>`

// ConfigProvider yields the current configuration on every dispatch, so a
// reloaded config takes effect without restarting the pipeline.
type ConfigProvider interface {
	Config() *config.Config
}

// DispatchStore is the slice of persistence the dispatcher reads.
type DispatchStore interface {
	GetTemplate(id string) (*models.Template, error)
	Recipients() ([]models.Recipient, error)
}

// ContentRenderer expands a template body for a statistics window.
type ContentRenderer interface {
	Render(ctx context.Context, templateHTML string, lookbackDays int) string
}

// SendOptions carries per-request overrides for one dispatch.
type SendOptions struct {
	// Subject overrides the newsletter subject when set.
	Subject string

	// HTML and Text supply the body for raw mode.
	HTML string
	Text string

	// To and Bcc, when either is non-empty, replace the newsletter's
	// recipient list entirely.
	To  []string
	Bcc []string

	// Raw skips template rendering and sends HTML and Text as given.
	Raw bool

	// DryRun resolves recipients, renders content, and verifies the
	// transport, but never sends.
	DryRun bool

	// Manual marks an operator-initiated send, which may fall back to the
	// global recipient list when the newsletter has none of its own.
	Manual bool
}

// Dispatcher runs the send pipeline: resolve recipients, produce content,
// verify the transport, deliver.
type Dispatcher struct {
	cfg       ConfigProvider
	store     DispatchStore
	renderer  ContentRenderer
	transport delivery.Transport
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(cfg ConfigProvider, store DispatchStore, renderer ContentRenderer, transport delivery.Transport) *Dispatcher {
	return &Dispatcher{cfg: cfg, store: store, renderer: renderer, transport: transport}
}

// Send runs the full pipeline for one newsletter. Precondition failures
// return a nil result with a sentinel-wrapped error; transport failures
// after verification return the transport error.
func (d *Dispatcher) Send(ctx context.Context, nl *models.Newsletter, opts SendOptions) (*models.DispatchResult, error) {
	cfg := d.cfg.Config()
	if !cfg.SMTP.Configured() {
		return nil, fmt.Errorf("%w: set smtp host, port, and from_address", ErrSMTPNotConfigured)
	}

	to, bcc, err := d.resolveRecipients(nl, opts)
	if err != nil {
		return nil, err
	}

	mode := models.ModeTemplate
	if opts.Raw {
		mode = models.ModeRaw
	}

	subject := opts.Subject
	if subject == "" {
		subject = nl.SubjectOrDefault()
	}

	html, text := d.buildContent(ctx, cfg, nl, opts)

	if err := d.transport.Verify(ctx, cfg.SMTP); err != nil {
		metrics.NewsletterSendsTotal.WithLabelValues("verify_failed", mode).Inc()
		return nil, fmt.Errorf("%w: %v", ErrVerificationFailed, err)
	}

	// A dry run still runs the verification handshake above; only the
	// actual send is skipped.
	if opts.DryRun {
		return &models.DispatchResult{
			OK:     true,
			ID:     nl.ID,
			DryRun: true,
			Summary: &models.DispatchSummary{
				ID:       nl.ID,
				ToCount:  len(to),
				BccCount: len(bcc),
				Subject:  subject,
				Mode:     mode,
			},
			ToCount:  len(to),
			BccCount: len(bcc),
			Mode:     mode,
		}, nil
	}

	start := time.Now()
	info, err := d.transport.Send(ctx, cfg.SMTP, &delivery.Message{
		Subject:      subject,
		HTML:         html,
		Text:         text,
		To:           to,
		Bcc:          bcc,
		NewsletterID: nl.ID,
		Mode:         mode,
	})
	if err != nil {
		metrics.NewsletterSendsTotal.WithLabelValues("failure", mode).Inc()
		return nil, fmt.Errorf("send newsletter %s: %w", nl.ID, err)
	}
	metrics.NewsletterSendsTotal.WithLabelValues("success", mode).Inc()

	logging.Info().
		Str("newsletter_id", nl.ID).
		Str("mode", mode).
		Int("to", len(to)).
		Int("bcc", len(bcc)).
		Int("rejected", len(info.Rejected)).
		Dur("elapsed", time.Since(start)).
		Msg("newsletter sent")

	return &models.DispatchResult{
		OK:        true,
		ID:        nl.ID,
		Accepted:  info.Accepted,
		Rejected:  info.Rejected,
		MessageID: info.MessageID,
		ToCount:   len(to),
		BccCount:  len(bcc),
		Mode:      mode,
	}, nil
}

// resolveRecipients applies the precedence chain: explicit request overrides
// win outright, then the newsletter's own list, then (for manual sends only)
// the global recipient list.
func (d *Dispatcher) resolveRecipients(nl *models.Newsletter, opts SendOptions) (to, bcc []string, err error) {
	if len(opts.To) > 0 || len(opts.Bcc) > 0 {
		return normalizeList(opts.To), normalizeList(opts.Bcc), checkNonEmpty(opts.To, opts.Bcc)
	}
	if len(nl.Recipients) > 0 {
		return nil, normalizeList(nl.Recipients), nil
	}
	if opts.Manual {
		recipients, err := d.store.Recipients()
		if err != nil {
			return nil, nil, fmt.Errorf("load recipients: %w", err)
		}
		emails := make([]string, 0, len(recipients))
		for _, r := range recipients {
			emails = append(emails, r.Email)
		}
		if len(emails) > 0 {
			return nil, normalizeList(emails), nil
		}
	}
	return nil, nil, fmt.Errorf("%w for newsletter %s", ErrNoRecipients, nl.ID)
}

func normalizeList(in []string) []string {
	return store.NormalizeEmails(in)
}

func checkNonEmpty(to, bcc []string) error {
	if len(normalizeList(to))+len(normalizeList(bcc)) == 0 {
		return fmt.Errorf("%w: override lists contained no valid addresses", ErrNoRecipients)
	}
	return nil
}

// buildContent produces the body pair. Template mode renders the selected
// template for the effective window; a newsletter without a usable template
// still sends, with a placeholder body.
func (d *Dispatcher) buildContent(ctx context.Context, cfg *config.Config, nl *models.Newsletter, opts SendOptions) (html, text string) {
	if opts.Raw {
		return wrapBody(opts.HTML), opts.Text
	}

	tpl := d.lookupTemplate(nl.TemplateID)
	if tpl == nil || tpl.HTML == "" {
		return wrapBody(missingTemplateHTML), ""
	}

	days := effectiveLookback(nl, tpl, cfg.Newsletter.LookbackDays)
	return wrapBody(d.renderer.Render(ctx, tpl.HTML, days)), ""
}

func (d *Dispatcher) lookupTemplate(id string) *models.Template {
	if id == "" {
		return nil
	}
	tpl, err := d.store.GetTemplate(id)
	if err != nil {
		logging.Warn().Err(err).Str("template_id", id).Msg("template lookup failed, sending placeholder")
		return nil
	}
	return tpl
}

// effectiveLookback resolves the statistics window: the newsletter's own
// setting wins, then the template override, then the configured default.
// Values outside 1-90 fall through to the next source.
func effectiveLookback(nl *models.Newsletter, tpl *models.Template, defaultDays int) int {
	if nl != nil && validLookback(nl.LookbackDays) {
		return nl.LookbackDays
	}
	if tpl != nil && tpl.LookbackDays != nil && validLookback(*tpl.LookbackDays) {
		return *tpl.LookbackDays
	}
	if validLookback(defaultDays) {
		return defaultDays
	}
	return 7
}

func validLookback(days int) bool {
	return days >= 1 && days <= 90
}

// wrapBody wraps the rendered fragments in the shared outer container mail
// clients render consistently.
func wrapBody(inner string) string {
	return `<div style="font-family:-apple-system,Segoe UI,Roboto,Helvetica,Arial,sans-serif;max-width:640px;margin:0 auto;padding:8px;color:#111827">` +
		inner + `</div>`
}
