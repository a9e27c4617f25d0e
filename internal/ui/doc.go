// Package ui renders styled terminal output for the CLI with lipgloss.
//
// [RenderIdentities] prints the linked accounts with token status, and [RenderSyncStats]
// summarizes a sync run. Colors come from a single [Palette].
package ui
