package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/trackwatch/internal/models"
	"github.com/desertthunder/trackwatch/internal/tasks"
)

func TestRenderIdentities(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	added := now.Add(-time.Hour)

	t.Run("empty", func(t *testing.T) {
		out := RenderIdentities(nil, now)
		if !strings.Contains(out, "Linked accounts (0)") || !strings.Contains(out, "No accounts linked yet") {
			t.Errorf("unexpected output %q", out)
		}
	})

	t.Run("rows", func(t *testing.T) {
		out := RenderIdentities([]*models.Identity{
			{ID: "alice", RequesterID: "111", ExpirationDate: now.Add(time.Hour), LastAdded: &added},
			{ID: "bob", RequesterID: "222", RefreshToken: "rt", ExpirationDate: now},
			{ID: "carol", RequesterID: "333", ExpirationDate: now},
		}, now)

		for _, want := range []string{"Linked accounts (3)", "ACCOUNT", "alice", "111", "valid", "bob", "expired", "relink", "2024-04-30T23:00:00Z", "never"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got %q", want, out)
			}
		}
	})
}

func TestRenderSyncStats(t *testing.T) {
	out := RenderSyncStats(&tasks.SyncStats{RunID: "run-1", Identities: 3, Updated: 2, Unchanged: 1, Notified: 1, Skipped: 1})
	for _, want := range []string{"Sync complete", "run-1", "Identities: 3", "1 skipped"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}

	if clean := RenderSyncStats(&tasks.SyncStats{RunID: "run-2"}); strings.Contains(clean, "Problems") {
		t.Errorf("expected no problems line, got %q", clean)
	}
}
