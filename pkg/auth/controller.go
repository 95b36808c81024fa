// Package auth decides whether a caller may invoke an operation.
//
// The decision only depends on the operation name and the raw credential
// header, so the same Controller guards echo handlers and plain net/http
// handlers alike.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// HeaderName is the request header carrying the credential.
const HeaderName = "Authorization"

// HealthOperation is exempt from authorization whatever the configuration.
const HealthOperation = "Health"

// ErrUnauthorized is the outcome of a denied decision.
var ErrUnauthorized = errors.New("unauthorized")

// Authorizer decides whether the credential header grants access to the
// named operation.
type Authorizer interface {
	Authorize(operation, header string) bool
}

// Controller holds the exempt operations and accepted credentials. It is
// read-only after construction and safe for concurrent use.
type Controller struct {
	exempt   map[string]struct{}
	accepted [][]byte
}

// NewController creates a controller. Empty keys are ignored. The health
// operation is always exempt in addition to noAuthOperations.
func NewController(allowedKeys, noAuthOperations []string) *Controller {
	c := &Controller{
		exempt:   make(map[string]struct{}, len(noAuthOperations)+1),
		accepted: make([][]byte, 0, len(allowedKeys)),
	}
	c.exempt[HealthOperation] = struct{}{}
	for _, op := range noAuthOperations {
		c.exempt[op] = struct{}{}
	}
	for _, key := range allowedKeys {
		if key = strings.TrimSpace(key); key != "" {
			c.accepted = append(c.accepted, []byte(key))
		}
	}
	return c
}

var _ Authorizer = (*Controller)(nil)

// Exempt reports whether the operation bypasses authorization.
func (c *Controller) Exempt(operation string) bool {
	_, ok := c.exempt[operation]
	return ok
}

// Authorize allows exempt operations unconditionally and otherwise requires
// the token in header to be an accepted key.
func (c *Controller) Authorize(operation, header string) bool {
	if c.Exempt(operation) {
		return true
	}

	token := Token(header)
	if token == "" {
		return false
	}

	candidate := []byte(token)
	matched := 0
	for _, key := range c.accepted {
		matched |= subtle.ConstantTimeCompare(candidate, key)
	}
	return matched == 1
}

// Token extracts the credential from a header value. "<scheme> <token>"
// yields token; a value without a scheme is the token itself. Malformed
// values yield "".
func Token(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found {
		return scheme
	}
	token = strings.TrimSpace(token)
	if strings.ContainsAny(token, " \t") {
		return ""
	}
	return token
}

// Check returns ErrUnauthorized when the decision is deny.
func Check(authorizer Authorizer, operation, header string) error {
	if authorizer == nil || !authorizer.Authorize(operation, header) {
		return ErrUnauthorized
	}
	return nil
}
