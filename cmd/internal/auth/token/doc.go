// Package token mints and validates the two bearer token classes used by the auth
// subsystem: short-lived access tokens and long-lived refresh tokens.
//
// The classes are signed with disjoint HMAC secrets and carry an explicit type marker,
// so a token of one class can never be accepted by the other class's verifier.
package token
