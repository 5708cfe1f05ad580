package metrics

import "time"

// EmailSent records a delivered message
func EmailSent(transport string, duration time.Duration) {
	EmailsSentTotal.WithLabelValues(transport, "sent").Inc()
	SendDuration.WithLabelValues(transport).Observe(duration.Seconds())
}

// EmailFailed records a send that did not reach the transport or was refused by it
func EmailFailed(transport string) {
	EmailsSentTotal.WithLabelValues(transport, "failed").Inc()
}

// Rendered records a template render outcome
func Rendered(ok bool, staged int) {
	if !ok {
		RendersTotal.WithLabelValues("failed").Inc()
		return
	}
	RendersTotal.WithLabelValues("ok").Inc()
	ImagesStagedTotal.Add(float64(staged))
}

// SendArmed records a scheduled send whose timer is running
func SendArmed() {
	ScheduledTotal.WithLabelValues("armed").Inc()
	ScheduledPending.Inc()
}

// SendFired records a scheduled send whose timer elapsed
func SendFired() {
	ScheduledTotal.WithLabelValues("fired").Inc()
	ScheduledPending.Dec()
}

// SendCancelled records a scheduled send stopped before firing
func SendCancelled() {
	ScheduledTotal.WithLabelValues("cancelled").Inc()
	ScheduledPending.Dec()
}

// SendRejected records a schedule request that was never armed
func SendRejected() {
	ScheduledTotal.WithLabelValues("rejected").Inc()
}

// MailboxRead records a mailbox read outcome and how many messages it returned
func MailboxRead(ok bool, fetched int) {
	if !ok {
		MailboxReadsTotal.WithLabelValues("failed").Inc()
		return
	}
	MailboxReadsTotal.WithLabelValues("ok").Inc()
	MessagesFetchedTotal.Add(float64(fetched))
}
