package models

import (
	"time"
)

// Account stores a tenant's OAuth grant to Reddit. Token fields hold
// vault ciphertext, never plaintext.
type Account struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TenantID       uint      `gorm:"index;not null" json:"tenant_id"`
	Username       string    `gorm:"not null" json:"username"`
	AccessToken    string    `gorm:"type:text;not null" json:"-"` // Encrypted
	RefreshToken   string    `gorm:"type:text;not null" json:"-"` // Encrypted
	TokenExpiresAt time.Time `json:"token_expires_at"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TokenValid returns true if the stored access token is still usable
func (a *Account) TokenValid(now time.Time) bool {
	return now.Before(a.TokenExpiresAt)
}
