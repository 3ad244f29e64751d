// Package auth implements the FootHub authentication service: user
// registration, RS256 JWT issuance and verification, email confirmation
// token redemption, and registration fan-out to subscriber services.
package auth
