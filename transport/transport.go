// Package transport delivers composed messages to a mail provider.
//
// A Transport receives the raw RFC 5322 bytes plus the envelope; it never
// inspects headers. Recipients listed only in the envelope (Bcc) therefore
// stay hidden from the other recipients.
package transport

import "context"

// Envelope is what the provider needs to route one message.
type Envelope struct {
	From       string
	Recipients []string
	Data       []byte
}

// Transport sends one message per call.
type Transport interface {
	Send(ctx context.Context, env Envelope) error

	// Name labels metrics and logs, e.g. "smtp" or "ses".
	Name() string
}
