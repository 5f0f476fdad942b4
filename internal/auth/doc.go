// Package auth handles access tokens for the assistant backend.
//
// # Client Side
//
// Credentials holds the current bearer token, persists it through a
// PreferenceStore, and forgets it when the server answers 401 for that exact
// token. Inspect decodes a token's claims without the signing secret so the
// client can warn about an expired login before sending anything.
//
// # Server Side
//
// Issuer signs and verifies HS256 tokens whose "sub" claim is the username.
// HTTPAuthMiddleware verifies the bearer token of each request, resolves the
// subject to an Identity and stores it in the request context:
//
//	r.Use(auth.HTTPAuthMiddleware(issuer, resolve, reject, logger))
//	...
//	id := auth.FromContext(r.Context())
//
// Both sides are used by the development backend and its tests.
package auth
