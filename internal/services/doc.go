// Package services implements the outbound clients of cosmic.
//
// # Catalog
//
// [SpotifyService] implements [Catalog] against the Spotify Web API. Authentication is the OAuth2
// authorization code flow with PKCE (S256); the verifier is generated per login and sent with the
// token exchange.
//
// Tokens are refreshed by [oauth2.ReuseTokenSource] when they are within ten seconds of expiring.
// A rotated refresh token replaces the stored one; when the provider omits it the previous refresh
// token is kept. Callers that persist tokens register a callback with
// [SpotifyService.SetTokenRefreshCallback].
//
// Requests are paced by a [rate.Limiter] shared by every copy made with [SpotifyService.WithToken].
//
// # Group API
//
// [GroupClient] implements [RoomClient] over HTTP against a cosmic server:
//   - POST /group/create → {"code"}
//   - POST /group/publish {"code","member"} → {"ok","size"}
//   - GET /group/get?code=&member= → {"code","members"}
//
// [LocalRooms] implements the same interface in process on top of a [rooms.Service].
//
// # Error Handling
//
// Non-success responses become [shared.UpstreamError] values, which match [shared.ErrUpstream].
// Missing tokens report [shared.ErrNotAuthenticated]; failed refreshes [shared.ErrRefreshFailed].
// A 503 from the create route maps to [shared.ErrCodeSpaceExhausted].
package services
