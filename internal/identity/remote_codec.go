package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stockledger/internal/model"

	"github.com/google/uuid"
)

// RemoteCodec asks the identity server who a credential belongs to
// (GET {base}/auth/v1/user). Revocation is honoured because the server, not
// the signature, decides.
type RemoteCodec struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRemoteCodec(baseURL, apiKey string, timeout time.Duration) *RemoteCodec {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteCodec{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ TokenCodec = (*RemoteCodec)(nil)

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (c *RemoteCodec) Exchange(ctx context.Context, credential string) (model.Principal, error) {
	if credential == "" || strings.ContainsAny(credential, " \t\r\n") {
		return model.Principal{}, ErrMalformedCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return model.Principal{}, fmt.Errorf("identity: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", ErrIdentityUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return model.Principal{}, ErrRejectedCredential
	case resp.StatusCode >= 500:
		return model.Principal{}, fmt.Errorf("%w: status %d", ErrIdentityUnreachable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return model.Principal{}, fmt.Errorf("%w: status %d", ErrRejectedCredential, resp.StatusCode)
	}

	var user remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return model.Principal{}, fmt.Errorf("identity: decode user: %w", err)
	}
	id, err := uuid.Parse(user.ID)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: user id is not a uuid", ErrRejectedCredential)
	}
	return model.Principal{ID: id, Email: user.Email, Role: user.Role}, nil
}
