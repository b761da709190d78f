package api

import (
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when a request carries no account.
var ErrUnauthenticated = errors.New("unauthenticated")

// IdentityProvider resolves the account a request acts for. Authentication
// itself happens upstream.
type IdentityProvider interface {
	AccountID(r *http.Request) (string, error)
}

// HeaderIdentity reads the account id from a request header set by the
// authenticating proxy.
type HeaderIdentity struct {
	Header string
}

func NewHeaderIdentity(header string) *HeaderIdentity {
	if header == "" {
		header = "X-Account-ID"
	}
	return &HeaderIdentity{Header: header}
}

func (p *HeaderIdentity) AccountID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.Header.Get(p.Header))
	if id == "" {
		return "", ErrUnauthenticated
	}
	return id, nil
}
