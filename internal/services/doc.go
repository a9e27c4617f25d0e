// Package services implements the HTTP clients trackwatch depends on.
//
// # Spotify
//
// [SpotifyService] covers both servers Spotify exposes:
//   - accounts service: authorization URL, authorization_code and refresh_token grants through
//     [oauth2.Config], with client credentials sent as HTTP Basic ([oauth2.AuthStyleInHeader])
//   - Web API: GET /me and the conditional GET /me/tracks (If-None-Match / ETag)
//
// Base URLs come from the credentials map so tests can point them at httptest servers.
//
// # Discord
//
// [DiscordService] posts a single JSON message per call to a webhook with wait=true and,
// when configured, a thread_id. allowed_mentions.parse is always an empty list so the
// text mention renders without pinging anyone.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.UpstreamError] : non-success response during the interactive login flow
//   - [shared.ErrRefreshFailed] : refresh grant rejected or malformed
//   - [shared.ErrPollFailed] : saved-tracks request neither 2xx nor 304
//   - [shared.ErrNotifyFailed] : webhook delivery failed
package services
