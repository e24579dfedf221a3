package notify

import (
	"context"

	"github.com/reddit-agent/internal/models"
)

// Notifier is the outbound channel for freshly discovered mentions.
// Delivery is fire-and-forget broadcast to whatever subscribers exist
// for the tenant; no acknowledgment is assumed.
type Notifier interface {
	PublishMention(ctx context.Context, tenantID uint, mention *models.Mention) error
}

// Noop discards all notifications. Used when no channel is configured
// and in tests.
type Noop struct{}

func (Noop) PublishMention(ctx context.Context, tenantID uint, mention *models.Mention) error {
	return nil
}
