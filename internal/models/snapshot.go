package models

import (
	"time"
)

// EngagementSnapshot is a point-in-time read of a posted item's Reddit
// metrics. Append-only; written only by the analytics refresher.
type EngagementSnapshot struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	PostID       uint           `gorm:"index;not null" json:"post_id"`
	Post         *ScheduledPost `gorm:"foreignKey:PostID" json:"post,omitempty"`
	Score        int            `json:"score"`
	CommentCount int            `json:"comment_count"`
	CapturedAt   time.Time      `json:"captured_at"`
}
