package models

import (
	"time"
)

// TrackedKeyword is a term a tenant wants monitored on Reddit.
// A nil LastScannedAt means the keyword has never been scanned and the
// next scan uses a wide historical window.
type TrackedKeyword struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	TenantID      uint       `gorm:"index;not null" json:"tenant_id"`
	Term          string     `gorm:"not null" json:"term"`
	Active        bool       `gorm:"default:true;index" json:"active"`
	LastScannedAt *time.Time `json:"last_scanned_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
