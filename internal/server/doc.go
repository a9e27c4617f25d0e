// Package server provides HTTP routing, middleware, and the account-linking handlers.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally. [BasicRouter.Allow] rejects other
// methods with 405 before any route matching; unmatched paths fall through to the mux's 404.
//
// # Account Linking
//
// [AuthHandler] serves three routes:
//   - / redirects to the configured Spotify profile
//   - /login seals the query string (which must carry id) into the OAuth state and redirects to Spotify
//   - /callback opens the state, exchanges the code, reads the profile and upserts the identity
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
