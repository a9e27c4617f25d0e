package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/trackwatch/internal/shared"
)

const savedTracksBody = `{
	"items": [
		{"added_at": "2024-05-03T10:00:00Z", "track": {"id": "t3", "name": "Three", "external_urls": {"spotify": "https://open.spotify.com/track/t3"}}},
		{"added_at": "2024-05-02T10:00:00Z", "track": {"id": "t2", "name": "Two", "external_urls": {}}}
	],
	"total": 2, "limit": 5, "offset": 0, "next": null, "previous": null
}`

// newSpotifyTestServer serves the accounts token endpoint and the Web API from one mux.
func newSpotifyTestServer(t *testing.T, token http.HandlerFunc, api http.Handler) (*httptest.Server, *SpotifyService) {
	t.Helper()

	mux := http.NewServeMux()
	if token != nil {
		mux.HandleFunc("/api/token", token)
	}
	if api != nil {
		mux.Handle("/v1/", api)
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := NewSpotifyService(map[string]string{
		"client_id":     "test_client_id",
		"client_secret": "test_client_secret",
		"redirect_uri":  "http://localhost:3000/callback",
		"accounts_url":  server.URL,
		"api_url":       server.URL + "/v1",
	}, server.Client())
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return server, srv
}

func jsonToken(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func TestSpotifyService(t *testing.T) {
	t.Run("NewSpotifyService", func(t *testing.T) {
		t.Run("With Valid Credentials", func(t *testing.T) {
			srv, err := NewSpotifyService(map[string]string{
				"client_id":     "test_client_id",
				"client_secret": "test_client_secret",
			}, nil)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if srv.config.Endpoint.TokenURL != "https://accounts.spotify.com/api/token" {
				t.Errorf("unexpected default token url %s", srv.config.Endpoint.TokenURL)
			}
			if srv.apiURL != spotifyBaseURL {
				t.Errorf("unexpected default api url %s", srv.apiURL)
			}
		})

		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_secret": "s"}, nil)
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Client Secret", func(t *testing.T) {
			_, err := NewSpotifyService(map[string]string{"client_id": "c"}, nil)
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	})

	t.Run("AuthCodeURL", func(t *testing.T) {
		srv, _ := NewSpotifyService(map[string]string{
			"client_id":     "test_client_id",
			"client_secret": "test_client_secret",
			"redirect_uri":  "http://localhost:3000/callback",
		}, nil)

		raw := srv.AuthCodeURL("abc+def,ghi=")
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("invalid auth url: %v", err)
		}

		if u.Host != "accounts.spotify.com" || u.Path != "/authorize" {
			t.Errorf("unexpected authorize endpoint %s", raw)
		}

		q := u.Query()
		want := map[string]string{
			"response_type": "code",
			"client_id":     "test_client_id",
			"scope":         "user-library-read",
			"redirect_uri":  "http://localhost:3000/callback",
			"state":         "abc+def,ghi=",
		}
		for k, v := range want {
			if q.Get(k) != v {
				t.Errorf("expected %s=%q, got %q", k, v, q.Get(k))
			}
		}
	})

	t.Run("Exchange", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			_, srv := newSpotifyTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				user, pass, ok := r.BasicAuth()
				if !ok || user != "test_client_id" || pass != "test_client_secret" {
					t.Errorf("expected basic client credentials, got %q %q %v", user, pass, ok)
				}
				if err := r.ParseForm(); err != nil {
					t.Fatalf("bad form: %v", err)
				}
				if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != "the_code" {
					t.Errorf("unexpected form %v", r.PostForm)
				}
				if r.PostForm.Get("redirect_uri") != "http://localhost:3000/callback" {
					t.Errorf("expected redirect_uri in form, got %v", r.PostForm)
				}
				jsonToken(w, `{"access_token":"at","token_type":"Bearer","scope":"user-library-read","expires_in":3600,"refresh_token":"rt"}`)
			}, nil)

			tok, err := srv.Exchange(context.Background(), "the_code")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tok.AccessToken != "at" || tok.RefreshToken != "rt" {
				t.Errorf("unexpected token %+v", tok)
			}
			if tok.ExpiresIn != time.Hour {
				t.Errorf("expected expires in 1h, got %v", tok.ExpiresIn)
			}
		})

		t.Run("Upstream Error", func(t *testing.T) {
			_, srv := newSpotifyTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Invalid authorization code"}`)
			}, nil)

			_, err := srv.Exchange(context.Background(), "bad")
			var upstream *shared.UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("expected UpstreamError, got %v", err)
			}
			if upstream.Status != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", upstream.Status)
			}
			if !strings.Contains(string(upstream.Body), "invalid_grant") {
				t.Errorf("expected upstream body to be kept, got %s", upstream.Body)
			}
			if !errors.Is(err, shared.ErrUpstream) {
				t.Error("expected error to match ErrUpstream")
			}
		})
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("Rotated Token", func(t *testing.T) {
			var calls atomic.Int32
			_, srv := newSpotifyTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				r.ParseForm()
				if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "old_rt" {
					t.Errorf("unexpected form %v", r.PostForm)
				}
				jsonToken(w, `{"access_token":"new_at","token_type":"Bearer","expires_in":3600,"refresh_token":"new_rt"}`)
			}, nil)

			tok, err := srv.Refresh(context.Background(), "old_rt")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tok.AccessToken != "new_at" || tok.RefreshToken != "new_rt" {
				t.Errorf("unexpected token %+v", tok)
			}
			if calls.Load() != 1 {
				t.Errorf("expected exactly one token request, got %d", calls.Load())
			}
		})

		t.Run("Rejected", func(t *testing.T) {
			_, srv := newSpotifyTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Refresh token revoked"}`)
			}, nil)

			_, err := srv.Refresh(context.Background(), "revoked")
			if !errors.Is(err, shared.ErrRefreshFailed) {
				t.Errorf("expected ErrRefreshFailed, got %v", err)
			}
		})

		t.Run("Body Without Access Token", func(t *testing.T) {
			_, srv := newSpotifyTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				jsonToken(w, `{"token_type":"Bearer","expires_in":3600}`)
			}, nil)

			_, err := srv.Refresh(context.Background(), "rt")
			if !errors.Is(err, shared.ErrRefreshFailed) {
				t.Errorf("expected ErrRefreshFailed, got %v", err)
			}
		})

		t.Run("Body Without Expiry", func(t *testing.T) {
			_, srv := newSpotifyTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				jsonToken(w, `{"access_token":"at","token_type":"Bearer"}`)
			}, nil)

			_, err := srv.Refresh(context.Background(), "rt")
			if !errors.Is(err, shared.ErrRefreshFailed) {
				t.Errorf("expected ErrRefreshFailed, got %v", err)
			}
		})
	})

	t.Run("Profile", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			_, srv := newSpotifyTestServer(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/me" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer at" {
					t.Errorf("expected bearer auth, got %q", r.Header.Get("Authorization"))
				}
				fmt.Fprint(w, `{"id":"spotify_user","display_name":"Someone"}`)
			}))

			user, err := srv.Profile(context.Background(), "at")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if user.ID != "spotify_user" {
				t.Errorf("expected id spotify_user, got %s", user.ID)
			}
		})

		t.Run("Upstream Error", func(t *testing.T) {
			_, srv := newSpotifyTestServer(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprint(w, `{"error":{"status":403,"message":"User not registered"}}`)
			}))

			_, err := srv.Profile(context.Background(), "at")
			var upstream *shared.UpstreamError
			if !errors.As(err, &upstream) || upstream.Status != http.StatusForbidden {
				t.Errorf("expected 403 UpstreamError, got %v", err)
			}
		})
	})

	t.Run("SavedTracks", func(t *testing.T) {
		t.Run("Unconditional", func(t *testing.T) {
			_, srv := newSpotifyTestServer(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/me/tracks" || r.URL.Query().Get("limit") != "5" {
					t.Errorf("unexpected request %s", r.URL)
				}
				if _, ok := r.Header["If-None-Match"]; ok {
					t.Error("expected no If-None-Match without a stored etag")
				}
				w.Header().Set("ETag", `"v1"`)
				fmt.Fprint(w, savedTracksBody)
			}))

			res, err := srv.SavedTracks(context.Background(), "at", "", 5)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if res.NotModified || res.ETag != `"v1"` {
				t.Errorf("unexpected result %+v", res)
			}

			items := res.Page.LibraryItems()
			if len(items) != 2 {
				t.Fatalf("expected 2 items, got %d", len(items))
			}
			if items[0].URL != "https://open.spotify.com/track/t3" || items[1].URL != "" {
				t.Errorf("unexpected urls %+v", items)
			}
			if !items[0].AddedAt.Equal(time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)) {
				t.Errorf("unexpected added_at %v", items[0].AddedAt)
			}
		})

		t.Run("Not Modified", func(t *testing.T) {
			_, srv := newSpotifyTestServer(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("If-None-Match") != `"v1"` {
					t.Errorf("expected If-None-Match \"v1\", got %q", r.Header.Get("If-None-Match"))
				}
				w.WriteHeader(http.StatusNotModified)
			}))

			res, err := srv.SavedTracks(context.Background(), "at", `"v1"`, 5)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !res.NotModified || res.Page != nil {
				t.Errorf("expected not-modified result, got %+v", res)
			}
		})

		t.Run("Failure", func(t *testing.T) {
			_, srv := newSpotifyTestServer(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error":{"status":401,"message":"The access token expired"}}`)
			}))

			res, err := srv.SavedTracks(context.Background(), "at", "", 5)
			if !errors.Is(err, shared.ErrPollFailed) {
				t.Fatalf("expected ErrPollFailed, got %v", err)
			}
			if res == nil || res.Status != http.StatusUnauthorized {
				t.Errorf("expected status 401 to be reported, got %+v", res)
			}
		})

		t.Run("Limit Clamped", func(t *testing.T) {
			_, srv := newSpotifyTestServer(t, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("limit") != "50" {
					t.Errorf("expected limit clamped to 50, got %s", r.URL.Query().Get("limit"))
				}
				fmt.Fprint(w, `{"items":[]}`)
			}))

			if _, err := srv.SavedTracks(context.Background(), "at", "", 500); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	})
}
