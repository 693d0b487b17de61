package arambo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arambo/backoffice/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    *LoginResult `json:"data"`
}

// Login authenticates against POST /auth/login. Failures are distinguishable
// through errors.Is: ErrRateLimited for HTTP 429, ErrInvalidCredentials for
// any other rejection; transport errors come back wrapped as-is.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "aramboClient.login")
	defer span.End()

	reqBytes, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(reqBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.countRequest("auth", http.MethodPost, "transport_error")
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	c.countRequest("auth", http.MethodPost, fmt.Sprintf("%d", resp.StatusCode))

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read login response: %w", err)
	}

	var loginResp loginResponse
	if err := json.Unmarshal(respBytes, &loginResp); err != nil {
		log.Debugf("unparseable login response [%d]: %s", resp.StatusCode, respBytes)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		span.SetStatus(codes.Error, "rate-limited")
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, rejectionMessage(loginResp.Message, "Too many login attempts. Please try again later."))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !loginResp.Success || loginResp.Data == nil {
		span.SetStatus(codes.Error, "login-rejected")
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, rejectionMessage(loginResp.Message, "Invalid username or password."))
	}

	span.SetStatus(codes.Ok, "logged-in")
	return loginResp.Data, nil
}

// Verify checks the token against GET /auth/verify and returns the admin
// identity confirmed by the server. Any failure, transport or otherwise,
// means the session cannot be trusted.
func (c *Client) Verify(ctx context.Context, token string) (*Admin, error) {
	var envelope apiEnvelope
	if err := c.doJSON(ctx, requestParams{
		resource:    "auth",
		method:      http.MethodGet,
		path:        "/auth/verify",
		bearerToken: token,
	}, &envelope); err != nil {
		return nil, err
	}

	if !envelope.Success || envelope.Admin == nil {
		return nil, fmt.Errorf("verify rejected: %s", rejectionMessage(envelope.Message, "no admin in response"))
	}
	return envelope.Admin, nil
}

// Logout tells the server to drop the session. Best-effort by contract; the
// caller clears local state regardless of the outcome here.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.doJSON(ctx, requestParams{
		resource:    "auth",
		method:      http.MethodPost,
		path:        "/auth/logout",
		bearerToken: token,
	}, nil)
}

func rejectionMessage(serverMessage, fallback string) string {
	if serverMessage != "" {
		return serverMessage
	}
	return fallback
}
