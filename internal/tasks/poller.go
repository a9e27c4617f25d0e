package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/trackwatch/internal/models"
	"github.com/desertthunder/trackwatch/internal/services"
	"github.com/desertthunder/trackwatch/internal/shared"
)

// DefaultPageLimit is the number of newest saved tracks requested per poll.
const DefaultPageLimit = 5

// PollKind classifies a conditional poll.
type PollKind int

const (
	PollUnchanged PollKind = iota
	PollUpdated
	PollFailed
)

func (k PollKind) String() string {
	switch k {
	case PollUnchanged:
		return "unchanged"
	case PollUpdated:
		return "updated"
	case PollFailed:
		return "failed"
	default:
		return ""
	}
}

// PollOutcome is the result of one [Poller.Poll].
//
// Items and ETag are set only for [PollUpdated]; Status is the HTTP status when one was received.
type PollOutcome struct {
	Kind   PollKind
	Items  []models.LibraryItem
	ETag   string
	Status int
	Err    error
}

// Poller issues the conditional saved-tracks request for an identity.
type Poller struct {
	client services.LibraryClient
	limit  int
}

func NewPoller(client services.LibraryClient, limit int) *Poller {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	return &Poller{client: client, limit: limit}
}

// Poll sends the stored etag as validator. It never touches the identity.
//
// A 200 whose ETag equals the stored one is reported as [PollUnchanged]; a 200
// without an ETag keeps the stored one.
func (p *Poller) Poll(ctx context.Context, identity *models.Identity) PollOutcome {
	result, err := p.client.SavedTracks(ctx, identity.AccessToken, identity.ETag, p.limit)
	if err != nil {
		outcome := PollOutcome{Kind: PollFailed, Err: err}
		if result != nil {
			outcome.Status = result.Status
		}
		return outcome
	}

	if result.NotModified {
		return PollOutcome{Kind: PollUnchanged, Status: result.Status}
	}
	if identity.ETag != "" && result.ETag == identity.ETag {
		return PollOutcome{Kind: PollUnchanged, Status: result.Status}
	}
	if result.Page == nil {
		return PollOutcome{Kind: PollFailed, Status: result.Status, Err: fmt.Errorf("%w: empty response body", shared.ErrPollFailed)}
	}

	etag := result.ETag
	if etag == "" {
		etag = identity.ETag
	}

	return PollOutcome{
		Kind:   PollUpdated,
		Items:  result.Page.LibraryItems(),
		ETag:   etag,
		Status: result.Status,
	}
}
