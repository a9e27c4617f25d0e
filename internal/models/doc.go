// Package models defines domain entities and the persistence interface for trackwatch.
//
//   - [Identity] : a linked Spotify account with its OAuth credentials, the ETag of the last
//     saved-tracks response and the watermark (added_at of the newest track already seen)
//   - [LibraryItem] : a saved track reduced to the two fields the sync core reads
//   - [IdentityRepository] : storage capability implemented by the sqlite, postgres and redis
//     repositories
//
// The credential fields and the progress fields are written separately, each in a single
// atomic write, so an observer never sees a half-updated identity.
package models
