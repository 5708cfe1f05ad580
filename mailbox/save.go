package mailbox

import (
	"bytes"
	"context"

	"github.com/DukeRupert/mailify/domain"
	"github.com/DukeRupert/mailify/storage"
)

// SavedAttachment records where an inbound attachment was stored.
type SavedAttachment struct {
	UID         uint32
	Filename    string
	ContentType string
	Key         string
	Size        int
}

// SaveAttachments writes every attachment of msgs to store under
// prefix/<uid>/attachments/. It stops at the first failure and returns
// what was saved before it.
func SaveAttachments(ctx context.Context, store storage.Storage, prefix string, msgs []domain.InboundMessage) ([]SavedAttachment, error) {
	var saved []SavedAttachment
	for _, msg := range msgs {
		for _, att := range msg.Attachments {
			key := storage.AttachmentKey(prefix, msg.UID, att.Filename, att.ContentType)
			err := store.Put(ctx, key, bytes.NewReader(att.Content), storage.PutOptions{
				ContentType: att.ContentType,
			})
			if err != nil {
				return saved, domain.Internal(err, "mailbox.save", "failed to store attachment "+att.Filename)
			}
			saved = append(saved, SavedAttachment{
				UID:         msg.UID,
				Filename:    att.Filename,
				ContentType: att.ContentType,
				Key:         key,
				Size:        len(att.Content),
			})
		}
	}
	return saved, nil
}
