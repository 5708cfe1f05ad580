package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/DukeRupert/mailify/domain"
)

const (
	// DefaultSMTPHost is used when SMTPConfig.Host is empty.
	DefaultSMTPHost = "smtp.gmail.com"

	// DefaultSMTPPort is the submission port with STARTTLS.
	DefaultSMTPPort = 587

	// ImplicitTLSPort is the SMTPS port where TLS starts before the greeting.
	ImplicitTLSPort = 465

	defaultSMTPTimeout = 30 * time.Second
)

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// Timeout bounds the whole session when the context has no deadline.
	Timeout time.Duration

	// TLSConfig overrides the client TLS settings, mainly for tests.
	TLSConfig *tls.Config

	// Insecure allows a plaintext session when the server does not offer
	// STARTTLS. Only for local relays.
	Insecure bool
}

// ErrNoStartTLS is returned when a server on a non-TLS port does not offer
// STARTTLS and SMTPConfig.Insecure is not set.
var ErrNoStartTLS = errors.New("server does not support STARTTLS")

// SMTP sends mail through an SMTP submission server. Port 465 uses implicit
// TLS; any other port must upgrade with STARTTLS unless Insecure is set.
type SMTP struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTP applies defaults to cfg and returns the transport.
func NewSMTP(cfg SMTPConfig, logger *slog.Logger) *SMTP {
	if cfg.Host == "" {
		cfg.Host = DefaultSMTPHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	return &SMTP{cfg: cfg, logger: logger}
}

// Name returns "smtp".
func (s *SMTP) Name() string {
	return "smtp"
}

// Send opens a session, authenticates when a username is configured, and
// submits env. Every failure is an ETRANSPORT error.
func (s *SMTP) Send(ctx context.Context, env Envelope) error {
	const op = "transport.smtp"

	if len(env.Recipients) == 0 {
		return domain.Invalid(op, "no recipients")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	client, err := s.dial(ctx)
	if err != nil {
		return domain.Transport(err, op, "failed to connect to SMTP server")
	}
	defer client.Close()

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return domain.Transport(err, op, "SMTP authentication failed")
		}
	}

	if err := client.Mail(env.From); err != nil {
		return domain.Transport(err, op, fmt.Sprintf("failed to set sender %s", env.From))
	}

	for _, rcpt := range env.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return domain.Transport(err, op, fmt.Sprintf("failed to set recipient %s", rcpt))
		}
	}

	w, err := client.Data()
	if err != nil {
		return domain.Transport(err, op, "failed to open data writer")
	}
	if _, err := w.Write(env.Data); err != nil {
		w.Close()
		return domain.Transport(err, op, "failed to write message data")
	}
	if err := w.Close(); err != nil {
		return domain.Transport(err, op, "server rejected message")
	}

	if err := client.Quit(); err != nil {
		s.logger.Warn("error during SMTP QUIT", "host", s.cfg.Host, "error", err)
	}

	s.logger.Debug("smtp session complete",
		"host", s.cfg.Host,
		"port", s.cfg.Port,
		"recipients", len(env.Recipients),
		"size", len(env.Data),
	)
	return nil
}

// dial connects and greets the server, upgrading to TLS as the port demands.
// The connection deadline follows ctx.
func (s *SMTP) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConfig := s.tlsConfig()

	var (
		conn net.Conn
		err  error
	)
	dialer := &net.Dialer{}
	if s.cfg.Port == ImplicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if s.cfg.Port != ImplicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("failed to start TLS: %w", err)
			}
		} else if !s.cfg.Insecure {
			client.Close()
			return nil, ErrNoStartTLS
		}
	}

	return client, nil
}

func (s *SMTP) tlsConfig() *tls.Config {
	if s.cfg.TLSConfig != nil {
		return s.cfg.TLSConfig
	}
	return &tls.Config{ServerName: s.cfg.Host}
}
