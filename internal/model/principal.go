package model

import "github.com/google/uuid"

// Principal is the authenticated actor behind one request. It lives only for
// the lifetime of that request's session and is never persisted.
type Principal struct {
	ID    uuid.UUID
	Email string
	// Role is the role claim carried by the credential. The core never
	// branches on it; it is forwarded to the backend's own policies.
	Role string
}
