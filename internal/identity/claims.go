// Package identity handles everything about who a request belongs to:
// decoding provider-issued ID tokens into normalized claims, hashing and
// verifying local passwords, and issuing the session JWTs this API hands
// back to clients.
package identity

import "strings"

// Claims is the decoded, verified attribute set carried by a provider ID
// token. It contains facts only, no decisions — the reconciliation engine
// decides what to do with them.
//
// Claims are ephemeral: produced once per verification call, consumed by a
// single reconcile, never persisted.
type Claims struct {
	ExternalUID   string // provider-scoped stable user identifier (the "sub" claim)
	Email         string // may be empty — the decoder never fabricates one
	DisplayName   string
	PhotoURL      string
	EmailVerified bool
	PhoneNumber   string
}

// normalize trims surrounding whitespace from the free-text claims.
// Email case-folding is the engine's job (it must also normalize emails
// that arrive outside any token, e.g. on password registration).
func (c *Claims) normalize() {
	c.ExternalUID = strings.TrimSpace(c.ExternalUID)
	c.Email = strings.TrimSpace(c.Email)
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	c.PhoneNumber = strings.TrimSpace(c.PhoneNumber)
}
