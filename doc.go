// Package authclient coordinates the client side of an authenticated backend
// session: token custody, the password and federated sign-in flows, and the
// forced-eviction policy applied when the backend reports a revoked session.
//
// Session coordination:
//   - SessionCoordinator owns the canonical Session (token + user profile) and
//     is the only writer of the persisted Credential. All UI surfaces read the
//     session through the coordinator and subscribe to change notifications.
//   - The coordinator guarantees that a session is never half-authenticated:
//     IsAuthenticated holds exactly when both the token and the profile are
//     present, and every uncertain outcome resolves to Unauthenticated.
//
// Federated sign-in:
//   - The federated package obtains a signed identity assertion from a
//     third-party provider through an interactive pop-up flow with a redirect
//     fallback, and normalizes provider failures into a closed error-kind set.
//   - Role elevation is an explicit two-attempt exchange policy: the assertion
//     is exchanged as a regular user first and retried once as an admin when
//     the caller asked for elevated access.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter describing login, logout,
//     signup, and forced-eviction events. Sinks run best-effort (errors are
//     logged) so you can forward to a database or queue without blocking
//     authentication.
package authclient
