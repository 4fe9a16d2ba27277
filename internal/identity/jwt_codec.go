package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the payload of an HS256 access token, in the shape GoTrue-style
// identity servers issue: sub is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTCodec verifies HS256 tokens locally with a shared secret.
type JWTCodec struct {
	secret   []byte
	audience string
	now      func() time.Time
}

func NewJWTCodec(secret, audience string) *JWTCodec {
	return &JWTCodec{secret: []byte(secret), audience: audience, now: time.Now}
}

var _ TokenCodec = (*JWTCodec)(nil)

func (c *JWTCodec) Exchange(_ context.Context, credential string) (model.Principal, error) {
	if credential == "" {
		return model.Principal{}, ErrMalformedCredential
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return model.Principal{}, fmt.Errorf("%w: %v", ErrExpiredCredential, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return model.Principal{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	case err != nil || !token.Valid:
		return model.Principal{}, fmt.Errorf("%w: %v", ErrRejectedCredential, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: subject is not a uuid", ErrMalformedCredential)
	}
	return model.Principal{ID: id, Email: claims.Email, Role: claims.Role}, nil
}

// Issue signs a token for p valid for ttl. It backs the mint-token command
// and tests; production credentials come from the identity server.
func (c *JWTCodec) Issue(p model.Principal, ttl time.Duration) (string, error) {
	now := c.now()
	claims := Claims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if c.audience != "" {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}
