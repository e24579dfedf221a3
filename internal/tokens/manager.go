package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/reddit-agent/internal/models"
	"github.com/reddit-agent/internal/reddit"
	"github.com/reddit-agent/internal/storage"
	"github.com/reddit-agent/internal/vault"
	"github.com/reddit-agent/pkg/logger"
)

// RefreshError means the refresh grant was rejected or unreachable. The
// caller marks the dependent operation failed; the stored credential is
// left unchanged so the next cycle can retry.
type RefreshError struct {
	AccountID uint
	Err       error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed for account %d: %v", e.AccountID, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Manager guarantees callers receive a currently-valid bearer token for
// an account, refreshing and re-encrypting the stored pair when needed.
type Manager struct {
	vault      *vault.Vault
	auth       *reddit.Authenticator
	repository storage.Repository
	log        *logger.Logger
	now        func() time.Time
}

// NewManager creates a token lifecycle manager
func NewManager(v *vault.Vault, auth *reddit.Authenticator, repo storage.Repository, log *logger.Logger) *Manager {
	return &Manager{
		vault:      v,
		auth:       auth,
		repository: repo,
		log:        log.WithComponent("tokens"),
		now:        time.Now,
	}
}

// ValidAccessToken returns a usable plaintext bearer token for the
// account. The stored token is returned as long as it has not expired;
// otherwise the refresh token is exchanged, the rotated pair re-encrypted
// and persisted, and the new access token returned. The plaintext never
// outlives the call.
func (m *Manager) ValidAccessToken(ctx context.Context, account *models.Account) (string, error) {
	if account.TokenValid(m.now()) {
		access, err := m.vault.Decrypt(account.AccessToken)
		if err != nil {
			return "", err
		}
		return access, nil
	}

	refresh, err := m.vault.Decrypt(account.RefreshToken)
	if err != nil {
		return "", err
	}

	m.log.Info().
		Uint("account_id", account.ID).
		Time("expired_at", account.TokenExpiresAt).
		Msg("Access token expired, refreshing")

	token, err := m.auth.Refresh(ctx, refresh)
	if err != nil {
		return "", &RefreshError{AccountID: account.ID, Err: err}
	}

	encAccess, err := m.vault.Encrypt(token.AccessToken)
	if err != nil {
		return "", err
	}

	// Reddit may not rotate the refresh token; keep the old ciphertext
	// when it doesn't
	encRefresh := account.RefreshToken
	if token.RefreshToken != "" && token.RefreshToken != refresh {
		encRefresh, err = m.vault.Encrypt(token.RefreshToken)
		if err != nil {
			return "", err
		}
	}

	account.AccessToken = encAccess
	account.RefreshToken = encRefresh
	account.TokenExpiresAt = token.Expiry

	if err := m.repository.UpdateAccount(ctx, account); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	m.log.Info().
		Uint("account_id", account.ID).
		Time("expires_at", token.Expiry).
		Msg("Token refreshed and persisted")

	return token.AccessToken, nil
}
