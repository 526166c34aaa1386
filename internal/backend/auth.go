package backend

import (
	"context"
	"encoding/json"
	"fmt"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenResponse is the backend's answer to login and refresh
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ProjectID    string `json:"projectId"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

// Login exchanges credentials for backend tokens. A non-2xx backend answer
// is returned as the Response with a nil TokenResponse.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, *Response, error) {
	resp, err := c.PostJSON(ctx, LoginPath, "", LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, nil, err
	}
	return decodeTokens(resp)
}

// Refresh exchanges a refresh token for a new access token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, *Response, error) {
	resp, err := c.PostJSON(ctx, RefreshPath, "", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, nil, err
	}
	return decodeTokens(resp)
}

func decodeTokens(resp *Response) (*TokenResponse, *Response, error) {
	if !resp.OK() {
		return nil, resp, nil
	}

	var tokens TokenResponse
	if err := json.Unmarshal(resp.Body, &tokens); err != nil {
		return nil, resp, fmt.Errorf("%w: failed to decode token response: %v", ErrUpstream, err)
	}
	if tokens.AccessToken == "" {
		return nil, resp, fmt.Errorf("%w: token response missing accessToken", ErrUpstream)
	}
	return &tokens, resp, nil
}
