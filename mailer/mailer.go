// Package mailer sends templated HTML email.
//
// A Mailer renders a template bundle, composes a multipart message with
// inline images and attachments, and hands it to a transport. Sends are
// synchronous; Schedule arms a one-shot timer for a later send.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/DukeRupert/mailify/domain"
	"github.com/DukeRupert/mailify/internal/metrics"
	"github.com/DukeRupert/mailify/render"
	"github.com/DukeRupert/mailify/transport"
)

// SendRequest describes one message to send.
type SendRequest struct {
	Subject string

	// Template is the bundle directory.
	Template string

	To  []string
	Cc  []string
	Bcc []string

	// Variables are literal find-and-replace pairs applied to the rendered HTML.
	Variables map[string]string
}

// Mailer sends mail for one sender identity. It is safe for concurrent use.
type Mailer struct {
	cfg       Config
	renderer  *render.Renderer
	transport transport.Transport
	logger    *slog.Logger
}

// New creates a Mailer that delivers through tr. A nil logger is built
// from cfg and writes to stderr.
func New(cfg Config, tr transport.Transport, logger *slog.Logger) (*Mailer, error) {
	if !domain.ValidateAddress(cfg.SenderEmail) {
		return nil, domain.Invalid("mailer.new", fmt.Sprintf("sender_email %q is not a valid address", cfg.SenderEmail))
	}
	if logger == nil {
		logger = cfg.Logger(os.Stderr)
	}

	return &Mailer{
		cfg:       cfg,
		renderer:  render.NewRenderer(cfg.StagingDir, logger),
		transport: tr,
		logger:    logger,
	}, nil
}

// NewFromConfig validates cfg and builds the transport it names. A nil
// logger is built from cfg and writes to stderr.
func NewFromConfig(ctx context.Context, cfg Config, logger *slog.Logger) (*Mailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = cfg.Logger(os.Stderr)
	}

	var tr transport.Transport
	switch cfg.Transport {
	case TransportSES:
		ses, err := transport.NewSES(ctx, transport.SESConfig{
			Region:          cfg.SESRegion,
			AccessKeyID:     cfg.SESAccessKeyID,
			SecretAccessKey: cfg.SESSecretAccessKey,
		}, logger)
		if err != nil {
			return nil, domain.Transport(err, "mailer.new", "failed to configure SES")
		}
		tr = ses
	default:
		tr = transport.NewSMTP(transport.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SenderEmail,
			Password: cfg.Password,
			Insecure: cfg.SMTPInsecure,
		}, logger)
	}

	return New(cfg, tr, logger)
}

// Send renders req.Template and delivers it to every valid address in
// To, Cc and Bcc. Invalid addresses are dropped. It fails with EINVALID
// when no valid recipient remains.
//
// Errors are wrapped with Op "mailer.send" and keep the code of the
// underlying failure.
func (m *Mailer) Send(ctx context.Context, req SendRequest) error {
	start := time.Now()

	msg := &domain.OutgoingMessage{
		Subject:  req.Subject,
		FromName: m.cfg.SenderName,
		From:     m.cfg.SenderEmail,
		To:       domain.NormalizeAddresses(req.To...),
		Cc:       domain.NormalizeAddresses(req.Cc...),
		Bcc:      domain.NormalizeAddresses(req.Bcc...),
	}

	recipients := msg.Recipients()
	if len(recipients) == 0 {
		return m.fail(domain.Invalid("mailer.send", "no valid recipients"), req)
	}

	rendered, err := m.renderer.Render(ctx, req.Template, req.Variables)
	if err != nil {
		return m.fail(err, req)
	}
	msg.HTML = rendered.HTML
	msg.Inline = rendered.Inline
	msg.Attachments = rendered.Attachments

	data, err := composeMessage(msg, start)
	if err != nil {
		return m.fail(domain.Internal(err, "mailer.compose", "failed to compose message"), req)
	}

	err = m.transport.Send(ctx, transport.Envelope{
		From:       m.cfg.SenderEmail,
		Recipients: recipients,
		Data:       data,
	})
	if err != nil {
		return m.fail(err, req)
	}

	metrics.EmailSent(m.transport.Name(), time.Since(start))
	m.logger.Info("email sent",
		"subject", req.Subject,
		"template", req.Template,
		"to", len(msg.To),
		"cc", len(msg.Cc),
		"bcc", len(msg.Bcc),
		"inline_images", len(msg.Inline),
		"attachments", len(msg.Attachments),
		"transport", m.transport.Name(),
		"duration", time.Since(start),
	)
	return nil
}

func (m *Mailer) fail(err error, req SendRequest) error {
	metrics.EmailFailed(m.transport.Name())
	m.logger.Error("failed to send email",
		"subject", req.Subject,
		"template", req.Template,
		"code", domain.ErrorCode(err),
		"error", err,
	)
	return domain.Wrap(err, "", "mailer.send", "send failed")
}
