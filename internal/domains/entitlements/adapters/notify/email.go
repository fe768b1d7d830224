package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Apurer/course-marketplace-api/internal/clients/http/email"
	"github.com/Apurer/course-marketplace-api/internal/domains/entitlements/ports"
	"github.com/Apurer/course-marketplace-api/internal/shared/purchase"
)

var _ ports.Notifier = (*EmailNotifier)(nil)

// ErrNoRecipient means the buyer has no email on file.
var ErrNoRecipient = errors.New("buyer has no email address")

// Sender is satisfied by email.Client.
type Sender interface {
	Send(ctx context.Context, msg email.Message, opts ...email.SendOption) error
}

// EmailNotifier sends the confirmation email directly.
type EmailNotifier struct {
	sender Sender
}

func NewEmailNotifier(sender Sender) *EmailNotifier {
	return &EmailNotifier{sender: sender}
}

func (n *EmailNotifier) NotifyGranted(ctx context.Context, notice ports.GrantedNotice) error {
	if strings.TrimSpace(notice.Email) == "" {
		return ErrNoRecipient
	}
	return n.sender.Send(ctx, composeGranted(notice), email.WithIdempotencyKey("granted-"+notice.EnrollmentID))
}

func composeGranted(notice ports.GrantedNotice) email.Message {
	name := notice.DisplayName
	if name == "" {
		name = "there"
	}
	what := "course " + notice.Target.ID
	if notice.Target.Kind == purchase.KindLevel {
		what = "level " + notice.Target.ID + " package"
	}
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\nYour payment was received and the %s is now unlocked.\n", name, what)
	if notice.OrderCode != 0 {
		fmt.Fprintf(&body, "Order: %d\nAmount: %d\n", notice.OrderCode, notice.Amount)
	}
	body.WriteString("\nHappy learning!\n")
	return email.Message{
		To:      notice.Email,
		Subject: "Enrollment confirmed: " + what,
		Text:    body.String(),
	}
}
