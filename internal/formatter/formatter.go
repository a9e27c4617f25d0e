// package formatter renders webhook messages and identity listings (CSV, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/trackwatch/internal/models"
)

// NewTracksMessage builds the webhook content announcing urls to mention.
//
// The header reads "{mention} saved N new track(s) on Spotify!", followed by one URL per line.
func NewTracksMessage(mention string, urls []string) string {
	var b strings.Builder

	noun := "tracks"
	if len(urls) == 1 {
		noun = "track"
	}
	fmt.Fprintf(&b, "%s saved %d new %s on Spotify!", mention, len(urls), noun)

	for _, u := range urls {
		b.WriteString("\n")
		b.WriteString(u)
	}
	return b.String()
}

// IdentitySummary is the listing view of an identity. Credentials are reduced to flags.
type IdentitySummary struct {
	ID              string     `json:"id"`
	RequesterID     string     `json:"requester_id"`
	ExpirationDate  time.Time  `json:"expiration_date"`
	HasRefreshToken bool       `json:"has_refresh_token"`
	ETag            string     `json:"etag,omitempty"`
	LastAdded       *time.Time `json:"last_added,omitempty"`
}

// Summarize converts identities to their listing view, keeping order.
func Summarize(identities []*models.Identity) []IdentitySummary {
	out := make([]IdentitySummary, 0, len(identities))
	for _, i := range identities {
		out = append(out, IdentitySummary{
			ID:              i.ID,
			RequesterID:     i.RequesterID,
			ExpirationDate:  i.ExpirationDate,
			HasRefreshToken: i.HasRefreshToken(),
			ETag:            i.ETag,
			LastAdded:       i.LastAdded,
		})
	}
	return out
}

// ExportToCSV converts identities to CSV with columns: ID, Requester, Expires, Refreshable, ETag, Last Added
func ExportToCSV(identities []*models.Identity) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Requester", "Expires", "Refreshable", "ETag", "Last Added"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, s := range Summarize(identities) {
		record := []string{
			s.ID,
			s.RequesterID,
			s.ExpirationDate.UTC().Format(time.RFC3339),
			fmt.Sprintf("%t", s.HasRefreshToken),
			s.ETag,
			formatWatermark(s.LastAdded),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts identities to an indented JSON array.
func ExportToJSON(identities []*models.Identity) ([]byte, error) {
	data, err := json.MarshalIndent(Summarize(identities), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal identities: %w", err)
	}
	return data, nil
}

// ExportToText converts identities to plain text format
func ExportToText(identities []*models.Identity) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Identities: %d\n\n", len(identities)))

	for i, s := range Summarize(identities) {
		buf.WriteString(fmt.Sprintf("%d. %s (requester %s) last added %s\n", i+1, s.ID, s.RequesterID, formatWatermark(s.LastAdded)))
	}

	return buf.Bytes(), nil
}

func formatWatermark(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
