package rpc

import (
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// OwnerHeader carries the authenticated user id set by the upstream auth layer.
const OwnerHeader = "X-User-ID"

var errMissingOwner = errors.New("missing " + OwnerHeader + " header")

// OwnerFromHeader extracts the owner id or returns an Unauthenticated error.
func OwnerFromHeader(h http.Header) (string, error) {
	owner := strings.TrimSpace(h.Get(OwnerHeader))
	if owner == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errMissingOwner)
	}
	return owner, nil
}
