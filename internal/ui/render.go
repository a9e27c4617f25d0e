package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/trackwatch/internal/models"
	"github.com/desertthunder/trackwatch/internal/tasks"
)

var cell = lipgloss.NewStyle().PaddingRight(2)

// tokenStatus describes the access token of i at now.
func tokenStatus(i *models.Identity, now time.Time) string {
	switch {
	case !i.Expired(now):
		return styles.OK("valid")
	case i.HasRefreshToken():
		return styles.Warn("expired")
	default:
		return styles.Err("expired, relink")
	}
}

// RenderIdentities renders a table of identities, one per row.
func RenderIdentities(identities []*models.Identity, now time.Time) string {
	var b strings.Builder
	b.WriteString(styles.Title(fmt.Sprintf("Linked accounts (%d)", len(identities))))
	b.WriteString("\n")

	if len(identities) == 0 {
		b.WriteString(styles.Help("No accounts linked yet. Open /login?id=<discord id> on the server."))
		b.WriteString("\n")
		return b.String()
	}

	cols := [][]string{{"ACCOUNT"}, {"REQUESTER"}, {"TOKEN"}, {"LAST ADDED"}}
	for _, i := range identities {
		last := "never"
		if i.LastAdded != nil {
			last = i.LastAdded.UTC().Format(time.RFC3339)
		}
		cols[0] = append(cols[0], i.ID)
		cols[1] = append(cols[1], i.RequesterID)
		cols[2] = append(cols[2], tokenStatus(i, now))
		cols[3] = append(cols[3], last)
	}

	blocks := make([]string, len(cols))
	for c, values := range cols {
		blocks[c] = cell.Render(strings.Join(values, "\n"))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, blocks...))
	b.WriteString("\n")
	return b.String()
}

// RenderSyncStats summarizes a finished run.
func RenderSyncStats(stats *tasks.SyncStats) string {
	var b strings.Builder
	b.WriteString(styles.Title("Sync complete"))
	b.WriteString("\n")

	fmt.Fprintf(&b, "Run:        %s\n", stats.RunID)
	fmt.Fprintf(&b, "Identities: %d\n", stats.Identities)
	fmt.Fprintf(&b, "Updated:    %s\n", styles.OK(fmt.Sprint(stats.Updated)))
	fmt.Fprintf(&b, "Unchanged:  %d\n", stats.Unchanged)
	fmt.Fprintf(&b, "Notified:   %s\n", styles.OK(fmt.Sprint(stats.Notified)))

	if failed := stats.Skipped + stats.PollFailed + stats.NotifyFailed; failed > 0 {
		fmt.Fprintf(&b, "Problems:   %s\n", styles.Err(fmt.Sprintf("%d skipped, %d poll failed, %d notify failed", stats.Skipped, stats.PollFailed, stats.NotifyFailed)))
	}
	fmt.Fprintf(&b, "Duration:   %s\n", stats.Duration.Round(time.Millisecond))
	return b.String()
}
