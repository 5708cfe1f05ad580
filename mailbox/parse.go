package mailbox

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/DukeRupert/mailify/domain"
	"github.com/DukeRupert/mailify/storage"
)

// ParseMessage decodes a raw RFC 5322 message.
//
// From, To, Subject and Date are taken from the headers as text. Body is
// the first text/plain or text/html part, depth-first, that is not an
// attachment and decodes. Every part that has a Content-Disposition with a
// filename becomes an attachment. Parts that fail to decode are skipped.
//
// Once the headers are read the message is always returned: a broken part
// structure leaves Body and Attachments with whatever was decoded before
// it. Only a message whose headers cannot be read is an EDECODE error.
func ParseMessage(raw []byte) (domain.InboundMessage, error) {
	return parseMessage(raw, nil)
}

// parseMessage is ParseMessage with a hook called when the part walk
// stops early.
func parseMessage(raw []byte, onPartErr func(error)) (domain.InboundMessage, error) {
	e, err := message.Read(bytes.NewReader(raw))
	if e == nil || (err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err)) {
		return domain.InboundMessage{}, domain.Decode(err, "mailbox.parse", "failed to parse message")
	}

	h := mail.Header{Header: e.Header}
	msg := domain.InboundMessage{
		From:    headerText(h, "From"),
		To:      headerText(h, "To"),
		Subject: headerText(h, "Subject"),
		Date:    h.Get("Date"),
	}

	bodyFound := false
	walkErr := e.Walk(func(_ []int, part *message.Entity, err error) error {
		if part == nil || (err != nil && !message.IsUnknownCharset(err)) {
			return nil
		}
		mediaType, _, _ := part.Header.ContentType()
		if !part.Header.Has("Content-Type") {
			mediaType = "text/plain"
		}
		if strings.HasPrefix(mediaType, "multipart/") {
			return nil
		}

		disp, dispParams, _ := part.Header.ContentDisposition()
		filename := dispParams["filename"]

		if disp != "" && filename != "" {
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil
			}
			if mediaType == "" {
				mediaType = storage.DetectContentType("", filename, bytes.NewReader(data))
			}
			msg.Attachments = append(msg.Attachments, domain.Attachment{
				Filename:    filename,
				ContentType: mediaType,
				Content:     data,
			})
			return nil
		}

		if bodyFound || disp == "attachment" {
			return nil
		}
		if mediaType != "text/plain" && mediaType != "text/html" {
			return nil
		}
		data, err := io.ReadAll(part.Body)
		if err != nil {
			return nil
		}
		msg.Body = string(data)
		bodyFound = true
		return nil
	})
	if walkErr != nil && onPartErr != nil {
		onPartErr(walkErr)
	}

	return msg, nil
}

// headerText decodes RFC 2047 words, falling back to the raw value.
func headerText(h mail.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(h.Get(key))
}
