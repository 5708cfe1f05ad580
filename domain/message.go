// Package domain holds the message types, address rules and error taxonomy
// shared by the renderer, the composer and the mailbox reader.
package domain

// =============================================================================
// Outgoing Mail
// =============================================================================

// InlineImage is an image part referenced from the HTML body by Content-ID.
type InlineImage struct {
	ID          string // Content-ID without angle brackets, e.g. "logo.png"
	ContentType string
	Content     []byte
}

// Attachment is a named binary part of a message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// OutgoingMessage is the fully rendered message handed to a transport.
// It is built per send and discarded after delivery.
type OutgoingMessage struct {
	Subject     string
	FromName    string
	From        string
	To          []string
	Cc          []string
	Bcc         []string // Envelope only, never written to headers
	HTML        string
	Inline      []InlineImage
	Attachments []Attachment
}

// Recipients returns the envelope recipients: To, then Cc, then Bcc.
func (m *OutgoingMessage) Recipients() []string {
	all := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	all = append(all, m.To...)
	all = append(all, m.Cc...)
	all = append(all, m.Bcc...)
	return all
}

// =============================================================================
// Inbound Mail
// =============================================================================

// InboundMessage is one message read from a mailbox. Header fields are kept
// as text; nothing is parsed or validated.
type InboundMessage struct {
	UID         uint32
	From        string
	To          string
	Subject     string
	Date        string
	Body        string
	Attachments []Attachment

	// Raw is the message exactly as fetched.
	Raw []byte
}
