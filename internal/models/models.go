// package models defines the data model for the saved-tracks notifier
package models

import (
	"context"
	"fmt"
	"time"
)

// Identity is one linked Spotify account plus its credentials and sync progress markers.
//
// Empty RefreshToken and ETag, and a nil LastAdded, mean the value is absent.
type Identity struct {
	ID             string     // Spotify account id
	RequesterID    string     // Discord user to mention
	AccessToken    string     // Short-lived bearer credential
	RefreshToken   string     // Long-lived credential used to mint access tokens
	ExpirationDate time.Time  // Instant after which AccessToken is invalid
	ETag           string     // Validator from the last non-304 poll
	LastAdded      *time.Time // Watermark: added_at of the newest item seen
}

// Expired reports whether the access token must be treated as invalid at now.
func (i *Identity) Expired(now time.Time) bool {
	return !now.Before(i.ExpirationDate)
}

// HasRefreshToken reports whether the identity can mint a new access token.
func (i *Identity) HasRefreshToken() bool {
	return i.RefreshToken != ""
}

// Clone returns a deep copy so pipelines can mutate without touching shared state.
func (i *Identity) Clone() *Identity {
	c := *i
	if i.LastAdded != nil {
		t := *i.LastAdded
		c.LastAdded = &t
	}
	return &c
}

// Validate checks the fields every persisted identity must carry.
func (i *Identity) Validate() error {
	switch {
	case i.ID == "":
		return fmt.Errorf("identity id is required")
	case i.RequesterID == "":
		return fmt.Errorf("requester id is required")
	case i.AccessToken == "":
		return fmt.Errorf("access token is required")
	case i.ExpirationDate.IsZero():
		return fmt.Errorf("expiration date is required")
	}
	return nil
}

// LibraryItem is one saved track as the sync core sees it.
type LibraryItem struct {
	AddedAt time.Time
	URL     string // empty when the track has no Spotify URL
}

// IdentityRepository defines access to persisted identities.
//
// SaveTokens and SaveProgress each update their subset of fields in a single atomic write.
type IdentityRepository interface {
	Get(ctx context.Context, id string) (*Identity, error)                             // Get returns ErrIdentityNotFound when absent
	List(ctx context.Context) ([]*Identity, error)                                      // List returns all identities ordered by id
	Upsert(ctx context.Context, identity *Identity) error                               // Upsert inserts or replaces the whole record
	SaveTokens(ctx context.Context, id, access, refresh string, expires time.Time) error // SaveTokens writes the credential subset
	SaveProgress(ctx context.Context, id, etag string, lastAdded *time.Time) error      // SaveProgress writes the sync-progress subset
	Delete(ctx context.Context, id string) error                                        // Delete removes the identity
}
