package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/trackwatch/internal/formatter"
	"github.com/desertthunder/trackwatch/internal/services"
	"github.com/desertthunder/trackwatch/internal/shared"
)

// Notifier announces new tracks in a single webhook message per call.
type Notifier struct {
	sender  services.WebhookSender
	mention func(requesterID string) string
}

// NewNotifier creates a notifier. mention renders a requester id; nil uses the Discord user form.
func NewNotifier(sender services.WebhookSender, mention func(string) string) *Notifier {
	if mention == nil {
		mention = func(id string) string { return "<@" + id + ">" }
	}
	return &Notifier{sender: sender, mention: mention}
}

// Notify posts one message listing urls. An empty list is rejected without a request.
func (n *Notifier) Notify(ctx context.Context, requesterID string, urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("%w: no tracks to announce", shared.ErrValidation)
	}

	content := formatter.NewTracksMessage(n.mention(requesterID), urls)
	if err := n.sender.Send(ctx, content); err != nil {
		return err
	}
	return nil
}
