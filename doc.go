// Package session manages the client-side authentication state for a
// course-marketplace API: who is signed in, the bearer token that proves
// it, and the lifecycle of the request that produced either.
//
// Session lifecycle:
//   - A Store owns the Session snapshot. It starts empty, is hydrated from
//     a Persistence backend on startup, and is mutated exclusively by
//     Gateway operation outcomes. Token and user are set and cleared
//     together; IsAuthenticated is derived from token presence.
//   - The Gateway performs one HTTP call per operation (login, student
//     registration, profile refresh) against the remote backend and maps
//     each settlement onto a Store transition. Logout is purely local.
//   - Guard decisions (render, redirect to login, redirect home) are pure
//     functions of a Session snapshot plus a route's required role. The
//     middleware/guard package wires them into go-router handlers.
//
// Persistence backends:
//   - Memory for tests and short-lived processes.
//   - storage/filestore mirrors token and serialized user to disk so a
//     restart restores the session without re-authenticating.
//   - storage/bunstore keeps the same two fields in a SQLite table for
//     hosts that already carry a local database.
//
// Token validity is discovered lazily: nothing verifies the persisted
// token at hydrate time. Hosts that want eager verification can attach a
// TokenVerifier (JWKS-backed via WithTokenVerifier) to the Gateway.
package session
