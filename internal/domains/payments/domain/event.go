package domain

import "time"

// Channel names the path through which a payment status was observed.
type Channel string

const (
	ChannelWebhook       Channel = "webhook"
	ChannelPoll          Channel = "poll"
	ChannelManualConfirm Channel = "manual_confirm"
	ChannelCancel        Channel = "cancel"
	ChannelExpiry        Channel = "expiry"
	ChannelSweep         Channel = "sweep"
	ChannelSession       Channel = "session"
)

// Event is a status report normalized from any channel.
type Event struct {
	OrderCode  int64
	Status     Status
	AmountPaid int64
	GatewayRef string
	Channel    Channel
	ObservedAt time.Time
	Payload    []byte
}

// Resolve returns the status the event should drive order to, or PENDING when nothing changes.
// A pending order past its deadline expires whatever the gateway reports.
func (e Event) Resolve(order *Order, now time.Time) (Status, Channel) {
	if order.IsExpired(now) {
		return StatusExpired, ChannelExpiry
	}
	return e.Status.Normalize(), e.Channel
}

// EventRecord is the audit entry kept for every observed event.
type EventRecord struct {
	OrderCode    int64
	Channel      Channel
	Reported     Status
	Resulting    Status
	Transitioned bool
	Payload      []byte
	Error        string
	ObservedAt   time.Time
}
