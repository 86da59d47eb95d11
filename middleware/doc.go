// Package middleware exposes HTTP middleware adapters for the idforge
// engine's token verification and permission checks.
//
// # Guards
//
//   - [Guard]: stateless access token verification, no Redis call.
//   - [GuardStrict]: token verification plus a session store check, so
//     revoked sessions are rejected immediately.
//   - [RequirePermission]: guard plus a permission requirement on the
//     verified identity.
//
// Each guard reads the Authorization header, calls the engine, and
// injects the verified [idforge.AuthResult] into the request context,
// retrievable with [AuthResultFromContext].
//
// This package translates HTTP semantics into engine calls and nothing
// more. It never parses tokens or touches stores itself.
package middleware
