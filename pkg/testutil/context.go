package testutil

import (
	"net/http"

	id "civreg/pkg/domain"
	"civreg/pkg/requestcontext"
)

// WithActor adds both the acting user and their role, as RequireAuth does.
func WithActor(req *http.Request, userID id.UserID, role string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), requestcontext.Actor{UserID: userID, Role: role}))
}
