package mailbox

import (
	"io"
	netmail "net/mail"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/emersion/go-message/mail"

	"github.com/DukeRupert/mailify/domain"
)

// unknownSender is the mbox separator address for messages whose From
// header does not parse.
const unknownSender = "MAILER-DAEMON"

// WriteMbox appends msgs to w in mboxrd format. Each separator line takes
// the sender address and Date header of its message, falling back to
// MAILER-DAEMON and the zero Unix time.
func WriteMbox(w io.Writer, msgs []domain.InboundMessage) error {
	mw := mbox.NewWriter(w)
	for _, msg := range msgs {
		if len(msg.Raw) == 0 {
			return domain.Invalid("mailbox.mbox", "message has no raw content")
		}

		mew, err := mw.CreateMessage(mboxSender(msg.From), mboxDate(msg.Date))
		if err != nil {
			return domain.Internal(err, "mailbox.mbox", "failed to start mbox message")
		}
		if _, err := mew.Write(msg.Raw); err != nil {
			return domain.Internal(err, "mailbox.mbox", "failed to write mbox message")
		}
	}
	if err := mw.Close(); err != nil {
		return domain.Internal(err, "mailbox.mbox", "failed to finish mbox")
	}
	return nil
}

func mboxSender(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil || addr.Address == "" {
		return unknownSender
	}
	return addr.Address
}

func mboxDate(date string) time.Time {
	t, err := netmail.ParseDate(date)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t
}
