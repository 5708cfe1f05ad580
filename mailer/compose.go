package mailer

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/DukeRupert/mailify/domain"
)

// composeMessage serializes msg as a multipart/mixed RFC 5322 message.
//
// Headers carry Date, Message-ID, Subject, From, To and Cc. Bcc is never
// written; those addresses only reach the transport envelope.
func composeMessage(msg *domain.OutgoingMessage, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: msg.FromName, Address: msg.From}})
	if len(msg.To) > 0 {
		h.SetAddressList("To", addressList(msg.To))
	}
	if len(msg.Cc) > 0 {
		h.SetAddressList("Cc", addressList(msg.Cc))
	}
	h.Set("MIME-Version", "1.0")
	h.SetContentType("multipart/mixed", nil)

	var buf bytes.Buffer
	mw, err := message.CreateWriter(&buf, h.Header)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}

	var body message.Header
	body.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	body.Set("Content-Transfer-Encoding", "quoted-printable")
	if err := writePart(mw, body, []byte(msg.HTML)); err != nil {
		return nil, fmt.Errorf("write html part: %w", err)
	}

	for _, img := range msg.Inline {
		var ph message.Header
		ph.SetContentType(img.ContentType, map[string]string{"name": img.ID})
		ph.SetContentDisposition("inline", map[string]string{"filename": img.ID})
		ph.Set("Content-ID", "<"+img.ID+">")
		ph.Set("Content-Transfer-Encoding", "base64")
		if err := writePart(mw, ph, img.Content); err != nil {
			return nil, fmt.Errorf("write inline image %q: %w", img.ID, err)
		}
	}

	for _, att := range msg.Attachments {
		var ph message.Header
		ph.SetContentType(att.ContentType, nil)
		ph.SetContentDisposition("attachment", map[string]string{"filename": att.Filename})
		ph.Set("Content-Transfer-Encoding", "base64")
		if err := writePart(mw, ph, att.Content); err != nil {
			return nil, fmt.Errorf("write attachment %q: %w", att.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close message writer: %w", err)
	}
	return buf.Bytes(), nil
}

func writePart(mw *message.Writer, h message.Header, content []byte) error {
	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(pw, bytes.NewReader(content)); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}

func addressList(addrs []string) []*mail.Address {
	out := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, &mail.Address{Address: a})
	}
	return out
}
