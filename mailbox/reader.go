// Package mailbox reads messages from an IMAP mailbox.
package mailbox

import (
	"cmp"
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"slices"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/DukeRupert/mailify/domain"
	"github.com/DukeRupert/mailify/internal/metrics"
)

const (
	// DefaultAddr is the server used when none is configured.
	DefaultAddr = "imap.gmail.com:993"

	// DefaultFolder is the mailbox selected when ReadOptions.Folder is empty.
	DefaultFolder = "INBOX"

	// DefaultLimit is the number of most recent messages returned by default.
	DefaultLimit = 4

	defaultTimeout = time.Minute
)

// Credentials authenticate one IMAP login.
type Credentials struct {
	Username string
	Password string
}

// ReadOptions select which messages Read returns.
type ReadOptions struct {
	Folder string

	// Limit keeps only the newest Limit matches; <= 0 returns every match.
	Limit int

	Filter Filter

	// MarkAsRead adds \Seen to every returned message. Otherwise the
	// folder is opened read-only and flags are left alone.
	MarkAsRead bool
}

// DefaultReadOptions returns the INBOX, newest 4, unfiltered, unread-preserving.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{
		Folder: DefaultFolder,
		Limit:  DefaultLimit,
	}
}

// Reader connects to one IMAP server. Each Read opens and closes its own
// session, so a Reader is safe for concurrent use.
type Reader struct {
	addr      string
	insecure  bool
	tlsConfig *tls.Config
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithInsecure connects over plain TCP, for local test servers.
func WithInsecure() Option {
	return func(r *Reader) { r.insecure = true }
}

// WithTLSConfig overrides the TLS client configuration.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(r *Reader) { r.tlsConfig = cfg }
}

// WithTimeout bounds a Read when the context carries no deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Reader) { r.timeout = d }
}

// NewReader returns a Reader for addr (host:port). An empty addr uses
// DefaultAddr with implicit TLS.
func NewReader(addr string, logger *slog.Logger, opts ...Option) *Reader {
	if addr == "" {
		addr = DefaultAddr
	}
	r := &Reader{
		addr:    addr,
		timeout: defaultTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read logs in, searches the folder with opts.Filter, keeps the newest
// opts.Limit matches and returns them parsed, oldest first.
//
// Any connection, login, select, search or fetch failure is an
// ETRANSPORT error and no messages are returned. An invalid filter is
// EINVALID and no connection is made.
func (r *Reader) Read(ctx context.Context, creds Credentials, opts ReadOptions) ([]domain.InboundMessage, error) {
	const op = "mailbox.read"

	if opts.Folder == "" {
		opts.Folder = DefaultFolder
	}

	criteria, err := opts.Filter.SearchCriteria()
	if err != nil {
		metrics.MailboxRead(false, 0)
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	msgs, err := r.read(ctx, creds, opts, criteria)
	if err != nil {
		metrics.MailboxRead(false, 0)
		r.logger.Error("failed to read mailbox",
			"addr", r.addr,
			"folder", opts.Folder,
			"criteria", opts.Filter.Criteria(),
			"error", err,
		)
		return nil, domain.Wrap(err, "", op, "mailbox read failed")
	}

	metrics.MailboxRead(true, len(msgs))
	r.logger.Info("mailbox read",
		"addr", r.addr,
		"folder", opts.Folder,
		"criteria", opts.Filter.Criteria(),
		"fetched", len(msgs),
		"mark_as_read", opts.MarkAsRead,
	)
	return msgs, nil
}

func (r *Reader) read(ctx context.Context, creds Credentials, opts ReadOptions, criteria *imap.SearchCriteria) ([]domain.InboundMessage, error) {
	const op = "mailbox.read"

	conn, err := r.dial(ctx)
	if err != nil {
		return nil, domain.Transport(err, op, "failed to connect to IMAP server")
	}

	client := imapclient.New(conn, nil)
	defer client.Close()

	// Unblock pending commands when the context ends.
	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	if err := client.Login(creds.Username, creds.Password).Wait(); err != nil {
		return nil, domain.Transport(err, op, "IMAP login failed")
	}

	if _, err := client.Select(opts.Folder, &imap.SelectOptions{ReadOnly: !opts.MarkAsRead}).Wait(); err != nil {
		return nil, domain.Transport(err, op, "failed to select "+opts.Folder)
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, domain.Transport(err, op, "IMAP search failed")
	}

	uids := searchData.AllUIDs()
	slices.Sort(uids)
	if opts.Limit > 0 && len(uids) > opts.Limit {
		uids = uids[len(uids)-opts.Limit:]
	}
	if len(uids) == 0 {
		r.logout(client)
		return []domain.InboundMessage{}, nil
	}

	uidSet := imap.UIDSetNum(uids...)

	if opts.MarkAsRead {
		err := client.Store(uidSet, &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil).Close()
		if err != nil {
			return nil, domain.Transport(err, op, "failed to mark messages as read")
		}
	}

	section := &imap.FetchItemBodySection{Peek: true}
	buffers, err := client.Fetch(uidSet, &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, domain.Transport(err, op, "IMAP fetch failed")
	}

	msgs := make([]domain.InboundMessage, 0, len(buffers))
	for _, buf := range buffers {
		raw := buf.FindBodySection(section)
		if raw == nil {
			r.logger.Warn("message has no body", "uid", buf.UID)
			continue
		}

		uid := buf.UID
		msg, err := parseMessage(raw, func(err error) {
			r.logger.Warn("message parts partly decoded", "uid", uid, "error", err)
		})
		if err != nil {
			r.logger.Warn("skipping unreadable message", "uid", uid, "error", err)
			continue
		}
		msg.UID = uint32(buf.UID)
		msg.Raw = raw
		msgs = append(msgs, msg)
	}

	slices.SortFunc(msgs, func(a, b domain.InboundMessage) int {
		return cmp.Compare(a.UID, b.UID)
	})

	r.logout(client)
	return msgs, nil
}

func (r *Reader) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{}
	if r.insecure {
		return dialer.DialContext(ctx, "tcp", r.addr)
	}

	cfg := r.tlsConfig
	if cfg == nil {
		host, _, err := net.SplitHostPort(r.addr)
		if err != nil {
			return nil, err
		}
		cfg = &tls.Config{ServerName: host}
	}
	return (&tls.Dialer{NetDialer: dialer, Config: cfg}).DialContext(ctx, "tcp", r.addr)
}

func (r *Reader) logout(client *imapclient.Client) {
	if err := client.Logout().Wait(); err != nil {
		r.logger.Debug("IMAP logout failed", "addr", r.addr, "error", err)
	}
}
