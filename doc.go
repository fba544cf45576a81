// Package authcore is the authentication and session lifecycle core:
// argon2id credential checks, dual-secret JWT issue/verify/revoke,
// MySQL-durable sessions with a Redis cache-aside layer, TOTP and
// backup-code second factors, and risk scoring with out-of-band alerts.
//
// The engine is built through Builder:
//
//	svc, err := authcore.NewBuilder(cfg).
//		WithLogger(logger).
//		WithRedis(rdb).
//		WithDB(db).
//		WithAccountProvider(accounts).
//		Build()
//
// Request metadata (client IP, user agent, device ID) travels through
// context via the With* helpers; the httpapi package wires them from
// Echo requests.
package authcore
