// Package idforge is an embeddable identity and session lifecycle core:
// credential verification (argon2id), access/refresh token issuance
// with rotation and replay detection, TOTP MFA with single-use backup
// codes, a multi-device session registry, and role based permission
// resolution.
//
// The engine owns no transport. Hosts construct it through the builder,
// wiring a Redis client, an AccountProvider over their own account
// collection, and a role catalog, then invoke it from their HTTP or RPC
// layer:
//
//	engine, err := idforge.New().
//		WithRedis(rdb).
//		WithAccountProvider(provider).
//		WithRoles(map[string][]string{
//			"admin":  {"*"},
//			"member": {"reports:read:own", "profile:write:own"},
//		}).
//		WithConfig(cfg).
//		Build()
//
// Refresh tokens are opaque strings backed by server-side rotation
// chains. Every refresh retires the presented token and issues a
// successor; presenting a retired token proves the token leaked and
// revokes the whole chain including the current holder's successor.
package idforge
