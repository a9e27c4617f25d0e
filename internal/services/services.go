// package services defines clients for the HTTP APIs trackwatch talks to
//
// Spotify (accounts + Web API), Discord (webhook)
package services

import (
	"context"
)

// OAuthClient is the authorization-server side of the login flow.
type OAuthClient interface {
	// AuthCodeURL returns the URL the browser is redirected to, carrying state.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for tokens.
	Exchange(ctx context.Context, code string) (*TokenResponse, error)

	// Profile returns the profile of the account owning accessToken.
	Profile(ctx context.Context, accessToken string) (*SpotifyUser, error)
}

// TokenRefresher mints access tokens from refresh tokens.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// LibraryClient reads an account's saved tracks with a conditional request.
type LibraryClient interface {
	SavedTracks(ctx context.Context, accessToken, etag string, limit int) (*SavedTracksResult, error)
}

// WebhookSender delivers one chat message.
type WebhookSender interface {
	Send(ctx context.Context, content string) error
}

var (
	_ OAuthClient    = (*SpotifyService)(nil)
	_ TokenRefresher = (*SpotifyService)(nil)
	_ LibraryClient  = (*SpotifyService)(nil)
	_ WebhookSender  = (*DiscordService)(nil)
)
