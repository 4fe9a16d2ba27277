// Package identity turns an inbound bearer credential into a request-scoped
// Session: a verified Principal plus an executor that acts only with that
// principal's permissions.
package identity

import (
	"context"
	"errors"

	"stockledger/internal/model"
)

// TokenCodec verifies a credential and yields the principal it names. It
// rejects malformed, expired and revoked credentials. Implementations never
// keep state between calls.
type TokenCodec interface {
	Exchange(ctx context.Context, credential string) (model.Principal, error)
}

// Causes a codec may report. The Delegator logs them and never returns them.
var (
	ErrMalformedCredential = errors.New("identity: malformed credential")
	ErrExpiredCredential   = errors.New("identity: credential expired")
	ErrRejectedCredential  = errors.New("identity: credential rejected")
	ErrIdentityUnreachable = errors.New("identity: identity server unreachable")
)
