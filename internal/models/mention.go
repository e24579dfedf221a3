package models

import (
	"time"
)

// Sentiment is a coarse classification of mention text
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentUnknown  Sentiment = "unknown"
)

// Mention is one discovered occurrence of a tracked keyword. Rows are
// immutable once created; SourceURL is the sole deduplication key.
type Mention struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	TenantID  uint            `gorm:"index;not null" json:"tenant_id"`
	KeywordID uint            `gorm:"index;not null" json:"keyword_id"`
	Keyword   *TrackedKeyword `gorm:"foreignKey:KeywordID" json:"keyword,omitempty"`
	SourceURL string          `gorm:"uniqueIndex;not null" json:"source_url"`
	Title     string          `json:"title"`
	Snippet   string          `gorm:"type:text" json:"snippet"`
	Author    string          `json:"author"`
	Subreddit string          `json:"subreddit"`
	Sentiment Sentiment       `gorm:"default:'unknown'" json:"sentiment"`
	FoundAt   time.Time       `json:"found_at"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
