// Package remote implements the driven.RemoteClient port against the
// news API.
//
// The API surface is small: POST /authenticate exchanges the stored
// device credential for a bearer token, POST /articles/sync returns the
// unseen-locator delta for a capped seen set, and GET /articles/{path}
// fetches one article document.
//
// The client applies one auth-retry rule to every call: a 401 resets the
// cached token, re-authenticates once and replays the request. It also
// throttles proactively with a token bucket and reactively honours
// Retry-After from 429 responses.
package remote
