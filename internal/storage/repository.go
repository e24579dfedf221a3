package storage

import (
	"context"
	"errors"
	"time"

	"github.com/reddit-agent/internal/models"
)

// ErrDuplicateMention is returned by CreateMention when a mention with
// the same source URL already exists. The unique index on source_url is
// the dedup authority; callers treat this as the skip signal, not a
// failure.
var ErrDuplicateMention = errors.New("mention already recorded for source url")

// Repository defines the interface for data persistence
type Repository interface {
	// Scheduled post operations
	CreatePost(ctx context.Context, post *models.ScheduledPost) error
	GetPostByID(ctx context.Context, id uint) (*models.ScheduledPost, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]*models.ScheduledPost, error)
	UpdatePost(ctx context.Context, post *models.ScheduledPost) error
	GetDuePosts(ctx context.Context, before time.Time) ([]*models.ScheduledPost, error)
	GetPostedWithRedditID(ctx context.Context) ([]*models.ScheduledPost, error)

	// Account operations
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByID(ctx context.Context, id uint) (*models.Account, error)
	UpdateAccount(ctx context.Context, account *models.Account) error

	// Tracked keyword operations
	CreateKeyword(ctx context.Context, keyword *models.TrackedKeyword) error
	GetActiveKeywords(ctx context.Context) ([]*models.TrackedKeyword, error)
	ListKeywords(ctx context.Context) ([]*models.TrackedKeyword, error)
	UpdateKeyword(ctx context.Context, keyword *models.TrackedKeyword) error

	// Mention operations
	CreateMention(ctx context.Context, mention *models.Mention) error
	ListMentions(ctx context.Context, filter MentionFilter) ([]*models.Mention, error)
	CountMentions(ctx context.Context) (int64, error)

	// Engagement snapshot operations
	CreateSnapshot(ctx context.Context, snapshot *models.EngagementSnapshot) error
	ListSnapshots(ctx context.Context, postID uint) ([]*models.EngagementSnapshot, error)

	// Maintenance
	Close() error
	Migrate() error
}

// PostFilter defines filtering options for scheduled posts
type PostFilter struct {
	Status    *models.PostStatus
	TenantID  *uint
	Limit     int
	Offset    int
	OrderBy   string
	OrderDesc bool
}

// MentionFilter defines filtering options for mentions
type MentionFilter struct {
	TenantID  *uint
	KeywordID *uint
	Limit     int
	Offset    int
}

// DefaultPostFilter returns a filter with sensible defaults
func DefaultPostFilter() PostFilter {
	return PostFilter{
		Limit:     50,
		OrderBy:   "scheduled_at",
		OrderDesc: true,
	}
}

// DefaultMentionFilter returns a filter with sensible defaults
func DefaultMentionFilter() MentionFilter {
	return MentionFilter{Limit: 50}
}
