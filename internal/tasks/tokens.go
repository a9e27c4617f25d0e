package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trackwatch/internal/models"
	"github.com/desertthunder/trackwatch/internal/services"
	"github.com/desertthunder/trackwatch/internal/shared"
)

// TokenManager keeps an identity's access token valid, refreshing and persisting when expired.
type TokenManager struct {
	refresher services.TokenRefresher
	repo      models.IdentityRepository
	now       func() time.Time
}

func NewTokenManager(refresher services.TokenRefresher, repo models.IdentityRepository) *TokenManager {
	return &TokenManager{refresher: refresher, repo: repo, now: time.Now}
}

// WithClock replaces the time source.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

// EnsureFresh returns identity unchanged while its token is valid. Otherwise it
// refreshes, writes the new credential subset in one call and returns the updated copy.
//
// The input is never mutated.
func (m *TokenManager) EnsureFresh(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	if !identity.Expired(m.now()) {
		return identity, nil
	}

	if !identity.HasRefreshToken() {
		return nil, fmt.Errorf("%w: identity %s", shared.ErrMissingRefreshToken, identity.ID)
	}

	resp, err := m.refresher.Refresh(ctx, identity.RefreshToken)
	if err != nil {
		if errors.Is(err, shared.ErrRefreshFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if resp.AccessToken == "" || resp.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: incomplete token response", shared.ErrRefreshFailed)
	}

	updated := identity.Clone()
	updated.AccessToken = resp.AccessToken
	updated.ExpirationDate = m.now().Add(resp.ExpiresIn)
	if resp.RefreshToken != "" {
		updated.RefreshToken = resp.RefreshToken
	}

	if err := m.repo.SaveTokens(ctx, updated.ID, updated.AccessToken, updated.RefreshToken, updated.ExpirationDate); err != nil {
		return nil, fmt.Errorf("%w: saving refreshed tokens: %v", shared.ErrPersistence, err)
	}
	return updated, nil
}
