// Spotify accounts and Web API client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/trackwatch/internal/models"
	"github.com/desertthunder/trackwatch/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAccountsURL = "https://accounts.spotify.com"
	spotifyBaseURL     = "https://api.spotify.com/v1"
	spotifyScope       = "user-library-read"
)

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	ExternalURL externalURLs   `json:"external_urls"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	ExternalURL externalURLs `json:"external_urls"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	DurationMS  int             `json:"duration_ms"`
	ExternalURL externalURLs    `json:"external_urls"`
	URI         string          `json:"uri"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt time.Time    `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

// LibraryItems reduces the page to what the sync core reads, keeping the newest-first order.
func (p *SpotifyPaginatedTracks) LibraryItems() []models.LibraryItem {
	items := make([]models.LibraryItem, 0, len(p.Items))
	for _, st := range p.Items {
		items = append(items, models.LibraryItem{AddedAt: st.AddedAt, URL: st.Track.ExternalURL.Spotify})
	}
	return items
}

// SavedTracksResult is the outcome of one conditional saved-tracks request.
type SavedTracksResult struct {
	Status      int
	NotModified bool
	ETag        string
	Page        *SpotifyPaginatedTracks
}

// TokenResponse is the part of an accounts-service token response the caller consumes.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string // empty when the server did not rotate it
	ExpiresIn    time.Duration
}

// SpotifyService talks to the Spotify accounts service and Web API.
//
// Token requests use [oauth2] with client credentials in an HTTP Basic header.
type SpotifyService struct {
	config     *oauth2.Config
	apiURL     string
	httpClient *http.Client
}

// NewSpotifyService creates a Spotify client from a credentials map:
// client_id and client_secret are required; redirect_uri, accounts_url and api_url are optional.
func NewSpotifyService(credentials map[string]string, client *http.Client) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	accountsURL := strings.TrimSuffix(credentials["accounts_url"], "/")
	if accountsURL == "" {
		accountsURL = spotifyAccountsURL
	}

	apiURL := strings.TrimSuffix(credentials["api_url"], "/")
	if apiURL == "" {
		apiURL = spotifyBaseURL
	}

	if client == nil {
		client = http.DefaultClient
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  credentials["redirect_uri"],
		Scopes:       []string{spotifyScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   accountsURL + "/authorize",
			TokenURL:  accountsURL + "/api/token",
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	return &SpotifyService{config: config, apiURL: apiURL, httpClient: client}, nil
}

// AuthCodeURL returns the authorization URL for the given state value.
func (s *SpotifyService) AuthCodeURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens.
//
// A non-success response is returned as [*shared.UpstreamError] so it can be forwarded.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*TokenResponse, error) {
	token, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, upstreamFromOAuth(err)
	}
	return tokenResponse(token)
}

// Refresh mints a new access token from a refresh token. Any failure wraps [shared.ErrRefreshFailed].
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	src := s.config.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return nil, fmt.Errorf("%w: status %d: %s", shared.ErrRefreshFailed, re.Response.StatusCode, strings.TrimSpace(string(re.Body)))
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	resp, err := tokenResponse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return resp, nil
}

// Profile retrieves the profile of the account owning accessToken.
func (s *SpotifyService) Profile(ctx context.Context, accessToken string) (*SpotifyUser, error) {
	resp, err := s.get(ctx, accessToken, "/me", "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, upstreamFromResponse(resp)
	}

	var user SpotifyUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: failed to decode profile: %v", shared.ErrAPIRequest, err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("%w: profile without id", shared.ErrAPIRequest)
	}
	return &user, nil
}

// SavedTracks requests the newest saved tracks, sending etag as If-None-Match when non-empty.
//
// Non-2xx, non-304 responses fail with [shared.ErrPollFailed]; the status is still reported.
func (s *SpotifyService) SavedTracks(ctx context.Context, accessToken, etag string, limit int) (*SavedTracksResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	resp, err := s.get(ctx, accessToken, "/me/tracks?limit="+strconv.Itoa(limit), etag)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPollFailed, err)
	}
	defer resp.Body.Close()

	result := &SavedTracksResult{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusNotModified {
		result.NotModified = true
		result.ETag = etag
		return result, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return result, fmt.Errorf("%w: status %d: %s", shared.ErrPollFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page SpotifyPaginatedTracks
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return result, fmt.Errorf("%w: failed to decode saved tracks: %v", shared.ErrPollFailed, err)
	}

	result.ETag = resp.Header.Get("ETag")
	result.Page = &page
	return result, nil
}

// get performs an authenticated GET against the Web API.
func (s *SpotifyService) get(ctx context.Context, accessToken, endpoint, etag string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// tokenResponse validates the fields of an oauth2 token the caller depends on.
func tokenResponse(token *oauth2.Token) (*TokenResponse, error) {
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response without access_token")
	}

	expiresIn := expiresInFromExtra(token)
	if expiresIn <= 0 && !token.Expiry.IsZero() {
		expiresIn = time.Until(token.Expiry).Round(time.Second)
	}
	if expiresIn <= 0 {
		return nil, fmt.Errorf("token response without a positive expires_in")
	}

	return &TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

func expiresInFromExtra(token *oauth2.Token) time.Duration {
	switch v := token.Extra("expires_in").(type) {
	case float64:
		return time.Duration(v) * time.Second
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return time.Duration(n) * time.Second
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}

func upstreamFromOAuth(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &shared.UpstreamError{Status: re.Response.StatusCode, Header: re.Response.Header, Body: re.Body}
	}
	return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
}

func upstreamFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &shared.UpstreamError{Status: resp.StatusCode, Header: resp.Header, Body: body}
}
