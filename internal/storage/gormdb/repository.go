package gormdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/reddit-agent/internal/models"
	"github.com/reddit-agent/internal/storage"
)

// Repository implements storage.Repository on GORM, backed by sqlite or
// postgres depending on configuration.
type Repository struct {
	db *gorm.DB
}

// New creates a repository for the given driver and DSN
func New(driver, dsn string) (*Repository, error) {
	var dialector gorm.Dialector

	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		// Ensure directory exists
		dir := filepath.Dir(dsn)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Surfaces unique-index violations as gorm.ErrDuplicatedKey on
		// both backends
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Account{},
		&models.ScheduledPost{},
		&models.TrackedKeyword{},
		&models.Mention{},
		&models.EngagementSnapshot{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Scheduled post operations

func (r *Repository) CreatePost(ctx context.Context, post *models.ScheduledPost) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *Repository) GetPostByID(ctx context.Context, id uint) (*models.ScheduledPost, error) {
	var post models.ScheduledPost
	if err := r.db.WithContext(ctx).Preload("Account").First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *Repository) ListPosts(ctx context.Context, filter storage.PostFilter) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost
	query := r.db.WithContext(ctx).Model(&models.ScheduledPost{}).Preload("Account")

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}

	// Ordering
	orderCol := "scheduled_at"
	if filter.OrderBy != "" {
		orderCol = filter.OrderBy
	}
	if filter.OrderDesc {
		query = query.Order(orderCol + " DESC")
	} else {
		query = query.Order(orderCol + " ASC")
	}

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *Repository) UpdatePost(ctx context.Context, post *models.ScheduledPost) error {
	return r.db.WithContext(ctx).Save(post).Error
}

// GetDuePosts returns scheduled posts whose time has passed, in
// scheduled order
func (r *Repository) GetDuePosts(ctx context.Context, before time.Time) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost
	if err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", models.PostStatusScheduled, before).
		Order("scheduled_at ASC").
		Preload("Account").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPostedWithRedditID returns posted items that can be refreshed
// through the batched info endpoint
func (r *Repository) GetPostedWithRedditID(ctx context.Context) ([]*models.ScheduledPost, error) {
	var posts []*models.ScheduledPost
	if err := r.db.WithContext(ctx).
		Where("status = ? AND reddit_post_id <> ''", models.PostStatusPosted).
		Order("id ASC").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// Account operations

func (r *Repository) CreateAccount(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *Repository) GetAccountByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

// Tracked keyword operations

func (r *Repository) CreateKeyword(ctx context.Context, keyword *models.TrackedKeyword) error {
	return r.db.WithContext(ctx).Create(keyword).Error
}

func (r *Repository) GetActiveKeywords(ctx context.Context) ([]*models.TrackedKeyword, error) {
	var keywords []*models.TrackedKeyword
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id ASC").
		Find(&keywords).Error; err != nil {
		return nil, err
	}
	return keywords, nil
}

func (r *Repository) ListKeywords(ctx context.Context) ([]*models.TrackedKeyword, error) {
	var keywords []*models.TrackedKeyword
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&keywords).Error; err != nil {
		return nil, err
	}
	return keywords, nil
}

func (r *Repository) UpdateKeyword(ctx context.Context, keyword *models.TrackedKeyword) error {
	return r.db.WithContext(ctx).Save(keyword).Error
}

// Mention operations

// CreateMention inserts a mention, reporting storage.ErrDuplicateMention
// when the source URL has been seen before. The insert itself is the
// dedup check, so concurrent writers cannot race past it.
func (r *Repository) CreateMention(ctx context.Context, mention *models.Mention) error {
	err := r.db.WithContext(ctx).Create(mention).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrDuplicateMention
	}
	return err
}

func (r *Repository) ListMentions(ctx context.Context, filter storage.MentionFilter) ([]*models.Mention, error) {
	var mentions []*models.Mention
	query := r.db.WithContext(ctx).Model(&models.Mention{}).Order("found_at DESC")

	if filter.TenantID != nil {
		query = query.Where("tenant_id = ?", *filter.TenantID)
	}
	if filter.KeywordID != nil {
		query = query.Where("keyword_id = ?", *filter.KeywordID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&mentions).Error; err != nil {
		return nil, err
	}
	return mentions, nil
}

func (r *Repository) CountMentions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Mention{}).Count(&count).Error
	return count, err
}

// Engagement snapshot operations

func (r *Repository) CreateSnapshot(ctx context.Context, snapshot *models.EngagementSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *Repository) ListSnapshots(ctx context.Context, postID uint) ([]*models.EngagementSnapshot, error) {
	var snapshots []*models.EngagementSnapshot
	if err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("captured_at ASC").
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}
