package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/trackwatch/internal/shared"
	tu "github.com/desertthunder/trackwatch/internal/testing"
)

func TestDiscordService(t *testing.T) {
	t.Run("NewDiscordService", func(t *testing.T) {
		if _, err := NewDiscordService("", "", nil); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}

		srv, err := NewDiscordService("https://discord.com/api/webhooks/1/abc", "", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if srv.httpClient != http.DefaultClient {
			t.Error("expected default http client")
		}
	})

	t.Run("Send", func(t *testing.T) {
		t.Run("posts one message with mentions suppressed", func(t *testing.T) {
			var calls int
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/api/webhooks/1/abc" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.URL.Query().Get("wait") != "true" || r.URL.Query().Get("thread_id") != "777" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("expected json content type, got %s", r.Header.Get("Content-Type"))
				}

				raw, _ := io.ReadAll(r.Body)
				if !strings.Contains(string(raw), `"parse":[]`) {
					t.Errorf("expected explicit empty parse list, got %s", raw)
				}

				var msg WebhookMessage
				if err := json.Unmarshal(raw, &msg); err != nil {
					t.Fatalf("invalid body: %v", err)
				}
				if msg.Content != "hello" {
					t.Errorf("expected content hello, got %q", msg.Content)
				}
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"id":"1"}`))
			}))
			defer server.Close()

			srv, _ := NewDiscordService(server.URL+"/api/webhooks/1/abc", "777", server.Client())
			if err := srv.Send(context.Background(), "hello"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if calls != 1 {
				t.Errorf("expected exactly one request, got %d", calls)
			}
		})

		t.Run("no thread id", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Has("thread_id") {
					t.Errorf("expected no thread_id, got %s", r.URL.RawQuery)
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			srv, _ := NewDiscordService(server.URL, "", server.Client())
			if err := srv.Send(context.Background(), "hi"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("non-2xx", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"message":"You are being rate limited."}`))
			}))
			defer server.Close()

			srv, _ := NewDiscordService(server.URL, "", server.Client())
			err := srv.Send(context.Background(), "hi")
			if !errors.Is(err, shared.ErrNotifyFailed) {
				t.Fatalf("expected ErrNotifyFailed, got %v", err)
			}
			if !strings.Contains(err.Error(), "429") {
				t.Errorf("expected status in error, got %v", err)
			}
		})

		t.Run("transport error", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
			srv, _ := NewDiscordService("http://discord.invalid/hook", "", client)
			if err := srv.Send(context.Background(), "hi"); !errors.Is(err, shared.ErrNotifyFailed) {
				t.Errorf("expected ErrNotifyFailed, got %v", err)
			}
		})

		t.Run("body read failure", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Body:       &tu.FCloser{},
				Header:     http.Header{},
			}, nil)}
			srv, _ := NewDiscordService("http://discord.invalid/hook", "", client)
			if _, err := srv.Post(context.Background(), []byte(`{}`)); err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected read failure, got %v", err)
			}
		})
	})
}
