package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase    Phase  // Operation phase
	Step     int    // Current step number within phase
	Total    int    // Total steps in this phase
	Identity string // Identity the update concerns, empty for run-level phases
	Message  string // Human-readable message for display
	Data     any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	LoadIdentities Phase = iota
	RefreshToken
	PollLibrary
	NotifyRequester
	IdentityDone
	IdentitySkipped
	AwaitWrites
)

func (p Phase) String() string {
	switch p {
	case LoadIdentities:
		return "load_identities"
	case RefreshToken:
		return "refresh_token"
	case PollLibrary:
		return "poll_library"
	case NotifyRequester:
		return "notify_requester"
	case IdentityDone:
		return "identity_done"
	case IdentitySkipped:
		return "identity_skipped"
	case AwaitWrites:
		return "await_writes"
	default:
		return ""
	}
}

func loadIdentitiesUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadIdentities,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Loaded %d identities", total),
	}
}

func pollLibraryUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:    PollLibrary,
		Step:     step,
		Total:    total,
		Identity: id,
		Message:  fmt.Sprintf("Polling saved tracks for %s...", id),
	}
}

func refreshTokenUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:    RefreshToken,
		Step:     step,
		Total:    total,
		Identity: id,
		Message:  fmt.Sprintf("Checking access token for %s...", id),
	}
}

func notifyRequesterUpdate(step, total int, id string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:    NotifyRequester,
		Step:     step,
		Total:    total,
		Identity: id,
		Message:  fmt.Sprintf("Announcing %d new track(s) for %s", count, id),
		Data:     count,
	}
}

func identityDoneUpdate(step, total int, id string, outcome PollKind) ProgressUpdate {
	return ProgressUpdate{
		Phase:    IdentityDone,
		Step:     step,
		Total:    total,
		Identity: id,
		Message:  fmt.Sprintf("Finished %s (%s)", id, outcome),
		Data:     outcome,
	}
}

func identitySkippedUpdate(step, total int, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:    IdentitySkipped,
		Step:     step,
		Total:    total,
		Identity: id,
		Message:  fmt.Sprintf("Skipped %s: %v", id, err),
		Data:     err,
	}
}

func awaitWritesUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   AwaitWrites,
		Step:    1,
		Total:   1,
		Message: "Waiting for pending writes...",
	}
}
