// Package server provides HTTP routing, middleware, sessions and the handlers of the cosmic web
// service and the CLI's OAuth loopback.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// [BasicRouter] uses [http.ServeMux] with method filtering; the CLI login runs on it.
// [MuxRouter] uses gorilla/mux and wraps the whole mux in middleware so preflight and unmatched
// requests are still logged and answered with CORS headers.
//
// # OAuth
//
// [OAuthHandler] serves the single /callback of a CLI login. It owns the state token and PKCE
// verifier of the attempt, exchanges the code and sends the result through a channel.
//
// [AuthHandler] is the browser flow of the serve command: /login stores state and verifier in
// 10 minute cookies and redirects to Spotify, /callback checks them and stores the grant in the
// signed session cookie managed by [SessionManager].
//
// # Routes
//
//	GET  /healthz
//	GET  /login, /callback, /logout
//	GET  /api/me/top?range=
//	POST /group/create
//	GET  /group/get?code=&member=
//	POST /group/publish
//	GET  /galaxy/snapshot.svg?code=&w=&h=
//
// Errors are JSON bodies of the form {"error": "code"}; see [StatusFor].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
