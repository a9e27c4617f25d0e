package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/trackwatch/internal/models"
	"github.com/desertthunder/trackwatch/internal/services"
	"github.com/desertthunder/trackwatch/internal/shared"
	"github.com/desertthunder/trackwatch/internal/state"
)

// AuthHandler links Spotify accounts to requesters through the authorization code flow.
// Implements the Handler interface for registration with a Router.
type AuthHandler struct {
	oauth      services.OAuthClient
	codec      *state.Codec
	repo       models.IdentityRepository
	profileURL string
	logger     *log.Logger
	now        func() time.Time
}

func NewAuthHandler(oauth services.OAuthClient, codec *state.Codec, repo models.IdentityRepository, profileURL string, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		oauth:      oauth,
		codec:      codec,
		repo:       repo,
		profileURL: profileURL,
		logger:     logger,
		now:        time.Now,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{"/{$}", "/login", "/callback"}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		http.Redirect(w, r, h.profileURL, http.StatusFound)
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

// login seals the whole query string into state and redirects to the authorize URL.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	authState, err := state.NewAuthState(r.URL.Query())
	if err != nil {
		http.Error(w, "Missing id", http.StatusBadRequest)
		return
	}

	value, err := h.codec.Issue(authState)
	if err != nil {
		h.logger.Error("failed to seal state", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.oauth.AuthCodeURL(value), http.StatusFound)
}

func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	authState, err := h.codec.Consume(q.Get("state"))
	if err != nil {
		h.logger.Debug("rejected callback state", "err", err)
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" || authState.RequesterID == "" {
		http.Error(w, "Invalid code", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.upstreamFailure(w, "token exchange failed", err)
		return
	}

	user, err := h.oauth.Profile(ctx, token.AccessToken)
	if err != nil {
		h.upstreamFailure(w, "profile request failed", err)
		return
	}

	identity := &models.Identity{
		ID:             user.ID,
		RequesterID:    authState.RequesterID,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		ExpirationDate: h.now().Add(token.ExpiresIn),
	}

	if err := h.repo.Upsert(ctx, identity); err != nil {
		h.logger.Error("failed to store identity", "identity", identity.ID, "err", err)
		http.Error(w, "Failed to store account", http.StatusInternalServerError)
		return
	}

	h.logger.Info("linked account", "identity", identity.ID, "requester", identity.RequesterID)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "All set!")
}

// upstreamFailure forwards an upstream response verbatim, or answers 502 when there is none.
func (h *AuthHandler) upstreamFailure(w http.ResponseWriter, msg string, err error) {
	var upstream *shared.UpstreamError
	if !errors.As(err, &upstream) {
		h.logger.Error(msg, "err", err)
		http.Error(w, "Bad gateway", http.StatusBadGateway)
		return
	}

	h.logger.Warn(msg, "status", upstream.Status)
	for k, values := range upstream.Header {
		switch http.CanonicalHeaderKey(k) {
		case "Content-Length", "Transfer-Encoding", "Connection", "Content-Encoding":
			continue
		}
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(upstream.Status)
	w.Write(upstream.Body)
}

// NewRouter builds the GET-only router serving h.
func NewRouter(h *AuthHandler, logger *log.Logger) *BasicRouter {
	router := NewBasicRouter()
	router.Use(RequestLogger(logger))
	router.Allow(http.MethodGet)
	router.Handler(h)
	return router
}
