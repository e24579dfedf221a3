package models

import (
	"time"
)

// PostStatus represents the current state of a scheduled post
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPosted    PostStatus = "posted"
	PostStatusError     PostStatus = "error"
)

// ScheduledPost represents a unit of content to be published to Reddit.
// Draft and scheduled posts are owned by the CRUD layer; the publish
// scheduler is the only writer of the posted and error states.
type ScheduledPost struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	TenantID         uint       `gorm:"index;not null" json:"tenant_id"`
	AccountID        *uint      `gorm:"index" json:"account_id"` // Nullable until scheduled
	Account          *Account   `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Title            string     `gorm:"not null" json:"title"`
	Body             string     `gorm:"type:text" json:"body"`
	Subreddit        string     `gorm:"not null" json:"subreddit"`
	Status           PostStatus `gorm:"default:'draft';index" json:"status"`
	ScheduledAt      *time.Time `gorm:"index" json:"scheduled_at"`
	PostedAt         *time.Time `json:"posted_at"`
	RedditPostID     string     `gorm:"index" json:"reddit_post_id"` // Fullname, e.g. t3_abc123
	RedditURL        string     `json:"reddit_url"`
	LastError        string     `gorm:"type:text" json:"last_error"`
	StatsRefreshedAt *time.Time `json:"stats_refreshed_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsDue returns true if the post is scheduled and its time has passed
func (p *ScheduledPost) IsDue(now time.Time) bool {
	return p.Status == PostStatusScheduled && p.ScheduledAt != nil && !p.ScheduledAt.After(now)
}

// MarkPosted transitions the post to the posted state
func (p *ScheduledPost) MarkPosted(fullname, url string, at time.Time) {
	p.Status = PostStatusPosted
	p.RedditPostID = fullname
	p.RedditURL = url
	p.PostedAt = &at
	p.LastError = ""
}

// MarkError transitions the post to the error state, preserving the cause
func (p *ScheduledPost) MarkError(msg string) {
	p.Status = PostStatusError
	p.LastError = msg
}
