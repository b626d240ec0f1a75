package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoAccessToken is returned when the login response has no usable
// accessToken field.
var ErrNoAccessToken = errors.New("login response has no accessToken")

// Credentials are the username and password exchanged for a token.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session holds the bearer token obtained at login. It is immutable for the
// lifetime of a run.
type Session struct {
	Token string
}

// Masked returns the token with everything but its edges hidden.
func (s *Session) Masked() string {
	if len(s.Token) <= 8 {
		return strings.Repeat("*", len(s.Token))
	}
	return s.Token[:4] + "..." + s.Token[len(s.Token)-4:]
}

// AuthClient performs the unauthenticated login call.
type AuthClient struct {
	base
}

// NewAuthClient creates an AuthClient for the API rooted at baseURL.
func NewAuthClient(baseURL string, opts ...Option) *AuthClient {
	return &AuthClient{base: newBase(baseURL, buildOptions(opts), nil)}
}

// Login sends POST /User/Authentication and returns the session carrying
// the accessToken from the response. There is no retry.
func (c *AuthClient) Login(ctx context.Context, creds Credentials) (*Session, error) {
	defer c.close()

	resp, err := c.do(ctx, "login", http.MethodPost, "/User/Authentication", creds)
	if err != nil {
		return nil, err
	}

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.AccessToken == "" {
		return nil, fmt.Errorf("%w (status %d): %s", ErrNoAccessToken, resp.StatusCode, preview(resp.Body))
	}

	c.opts.logger.Debug().
		Str("username", creds.Username).
		Int("status", resp.StatusCode).
		Msg("login succeeded")

	return &Session{Token: body.AccessToken}, nil
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	if s == "" {
		return "<empty body>"
	}
	return s
}
