package tasks

import (
	"time"

	"github.com/desertthunder/trackwatch/internal/models"
)

// Diff returns the items added after watermark and the watermark to store next.
//
// items must be newest first. A nil watermark bootstraps: nothing is new and the
// newest item's time becomes the watermark. Items without a URL are never returned
// but still move the watermark. The returned watermark never moves backwards.
func Diff(items []models.LibraryItem, watermark *time.Time) ([]models.LibraryItem, *time.Time) {
	if len(items) == 0 {
		return nil, watermark
	}

	newest := items[0].AddedAt
	if watermark == nil {
		return nil, &newest
	}

	var fresh []models.LibraryItem
	for _, item := range items {
		if !item.AddedAt.After(*watermark) {
			break
		}
		if item.URL == "" {
			continue
		}
		fresh = append(fresh, item)
	}

	if !newest.After(*watermark) {
		wm := *watermark
		return fresh, &wm
	}
	return fresh, &newest
}

// URLs extracts the URL of each item.
func URLs(items []models.LibraryItem) []string {
	urls := make([]string, 0, len(items))
	for _, item := range items {
		urls = append(urls, item.URL)
	}
	return urls
}
