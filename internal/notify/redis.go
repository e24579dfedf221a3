package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/reddit-agent/internal/config"
	"github.com/reddit-agent/internal/models"
	"github.com/reddit-agent/pkg/logger"
)

// RedisNotifier broadcasts mention events over Redis pub/sub on
// tenant-scoped channels ("mentions:<tenantID>").
type RedisNotifier struct {
	client *redis.Client
	log    *logger.Logger
}

// MentionEvent is the wire payload pushed to subscribers
type MentionEvent struct {
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	TenantID  uint            `json:"tenant_id"`
	Mention   *models.Mention `json:"mention"`
	EmittedAt time.Time       `json:"emitted_at"`
}

// NewRedis creates a Redis-backed notifier and verifies connectivity
func NewRedis(cfg config.NotifyConfig, log *logger.Logger) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisNotifier{
		client: client,
		log:    log.WithComponent("notify"),
	}, nil
}

// PublishMention broadcasts a mention to the tenant's channel
func (n *RedisNotifier) PublishMention(ctx context.Context, tenantID uint, mention *models.Mention) error {
	event := MentionEvent{
		EventID:   uuid.New().String(),
		Type:      "mention.created",
		TenantID:  tenantID,
		Mention:   mention,
		EmittedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal mention event: %w", err)
	}

	channel := fmt.Sprintf("mentions:%d", tenantID)
	if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	n.log.Debug().
		Str("channel", channel).
		Str("event_id", event.EventID).
		Msg("Mention published")

	return nil
}

// Close releases the Redis connection
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
