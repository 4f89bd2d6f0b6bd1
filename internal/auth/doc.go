// Package auth provides authentication and authorisation for authgate.
//
// It implements a database-backed RBAC model (users -> roles -> permissions)
// with:
//   - bcrypt password hashing (cost 12)
//   - HMAC-SHA-384 JWTs with independent access and refresh signing keys
//   - refresh token rotation with a jti revocation blacklist (in-memory
//     or Redis-backed for multi-instance deployments)
//   - scope-based request authorisation with an admin wildcard
//
// Permission names double as the scope strings embedded in access tokens,
// so the token itself carries everything the guard needs for the scope
// check. The database is only consulted for the subject's existence and
// active flag.
package auth
