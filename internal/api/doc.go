// Package api implements the authgate HTTP REST API.
//
// The API exposes the credential and token lifecycle (signup, login,
// refresh, logout), user administration, and RBAC management (roles,
// permissions, links) under /api/v1. Protected routes run the access
// guard pipeline via middleware: bearer token decode, revocation check,
// account state check, then scope authorisation.
//
// Handlers translate auth sentinel errors into HTTP status codes in one
// place (writeAuthError) so the mapping stays consistent across routes.
// Security-relevant requests are recorded to the audit trail through a
// buffered channel drained by a single writer goroutine.
package api
