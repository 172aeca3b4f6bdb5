package testutil

import (
	"net/http"
	"time"

	id "timekeep/pkg/domain"
	"timekeep/pkg/requestcontext"
)

// WithOwner adds an owner ID to the request context, simulating what the
// auth middleware does for authenticated requests.
func WithOwner(req *http.Request, ownerID id.OwnerID) *http.Request {
	return req.WithContext(requestcontext.WithOwnerID(req.Context(), ownerID))
}

// WithRequestTime pins the request-scoped instant, simulating the
// requesttime middleware for handlers exercised without the full chain.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
