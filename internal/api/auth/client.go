package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpClient "github.com/Alias1177/ProfitPredictor/internal/platform/http"
	"github.com/Alias1177/ProfitPredictor/models"
)

// Client reads sessions from a GoTrue compatible auth service
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new auth client
type ClientOptions struct {
	BaseURL        string
	AnonKey        string
	RequestTimeout time.Duration
	Transport      http.RoundTripper
}

// NewClient creates a new auth client
func NewClient(options ClientOptions) *Client {
	return &Client{
		baseURL: strings.TrimRight(options.BaseURL, "/"),
		anonKey: options.AnonKey,
		httpClient: httpClient.NewClient(httpClient.ClientOptions{
			Timeout:        options.RequestTimeout,
			RequestsPerSec: 20,
			Transport:      options.Transport,
		}),
		logger: log.With().Str("component", "auth_client").Logger(),
	}
}

// CurrentSession resolves accessToken to a session. It returns a nil session
// and a nil error when the token is empty, expired or revoked.
func (c *Client) CurrentSession(ctx context.Context, accessToken string) (*models.Session, error) {
	if accessToken == "" {
		return nil, nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		var statusErr *httpClient.HTTPStatusError
		if errors.As(err, &statusErr) {
			if statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden {
				c.logger.Debug().Int("status", statusErr.StatusCode).Msg("Token rejected")
				return nil, nil
			}
			return nil, &models.TransportError{StatusCode: statusErr.StatusCode, Err: err}
		}
		return nil, &models.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &models.TransportError{Err: fmt.Errorf("reading response body: %w", err)}
	}

	var user models.User
	if err := json.Unmarshal(body, &user); err != nil {
		c.logger.Error().Err(err).Msg("Error parsing user JSON")
		return nil, fmt.Errorf("parsing user: %w", err)
	}
	if user.ID == "" {
		return nil, nil
	}

	return &models.Session{AccessToken: accessToken, User: user}, nil
}

// SignOut revokes accessToken
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", accessToken)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		var statusErr *httpClient.HTTPStatusError
		if errors.As(err, &statusErr) {
			return &models.TransportError{StatusCode: statusErr.StatusCode, Err: err}
		}
		return &models.TransportError{Err: err}
	}
	resp.Body.Close()

	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path, accessToken string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if c.anonKey != "" {
		req.Header.Set("apikey", c.anonKey)
	}
	return req, nil
}
