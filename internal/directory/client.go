package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	goSession "github.com/MrEthical07/goSession"
	"github.com/rs/zerolog"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Error codes attached to directory failures.
const (
	CodeUnavailable    = "DIRECTORY_UNAVAILABLE"
	CodeBadResponse    = "DIRECTORY_BAD_RESPONSE"
	CodeUpdateRejected = "DIRECTORY_UPDATE_REJECTED"
)

const (
	authenticatePath = "/api/users/authenticate"
	searchPath       = "/api/users/search"
	updatePath       = "/api/users/password-reset/update"

	maxBodyBytes = 1 << 20
)

// Config configures an [HTTPClient].
type Config struct {
	BaseURL string
	// Timeout bounds each HTTP attempt. Zero means 5s.
	Timeout time.Duration
	// SearchRetries is the number of extra search attempts. Zero disables retries.
	SearchRetries uint64
	// RetryBase is the first backoff delay. Zero means 100ms.
	RetryBase  time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// HTTPClient is a [goSession.UserDirectory] backed by the user service API.
type HTTPClient struct {
	baseURL   string
	http      *http.Client
	retries   uint64
	retryBase time.Duration
	logger    zerolog.Logger
}

var _ goSession.UserDirectory = (*HTTPClient)(nil)

// NewHTTPClient validates cfg and returns a client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("directory base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 100 * time.Millisecond
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPClient{
		baseURL:   base,
		http:      client,
		retries:   cfg.SearchRetries,
		retryBase: cfg.RetryBase,
		logger:    cfg.Logger.With().Str("component", "directory").Logger(),
	}, nil
}

type userPayload struct {
	ID                     string `json:"id"`
	Username               string `json:"username"`
	Email                  string `json:"email"`
	PhoneNumber            string `json:"phoneNumber"`
	FirstName              string `json:"firstName"`
	LastName               string `json:"lastName"`
	Role                   string `json:"role"`
	PasswordChangeRequired bool   `json:"passwordChangeRequired"`
}

func (u userPayload) toUser() *goSession.User {
	return &goSession.User{
		ID:                     u.ID,
		Username:               u.Username,
		Email:                  u.Email,
		PhoneNumber:            u.PhoneNumber,
		FirstName:              u.FirstName,
		LastName:               u.LastName,
		Role:                   u.Role,
		PasswordChangeRequired: u.PasswordChangeRequired,
	}
}

type authenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authenticateResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *userPayload `json:"user"`
}

type searchRequest struct {
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type updateRequest struct {
	UserID      string `json:"userId"`
	NewPassword string `json:"newPassword"`
}

// Authenticate checks credentials. A 401 or 403 answer, or a 200 with
// authenticated=false, is a plain rejection; 404 is [goSession.ErrUserNotFound].
func (c *HTTPClient) Authenticate(ctx context.Context, username, password string) (goSession.AuthenticateResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, authenticatePath, authenticateRequest{Username: username, Password: password})
	if err != nil {
		return goSession.AuthenticateResult{}, err
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return goSession.AuthenticateResult{}, nil
	case status == http.StatusNotFound:
		return goSession.AuthenticateResult{}, goSession.ErrUserNotFound
	case status/100 != 2:
		return goSession.AuthenticateResult{}, statusError(status, authenticatePath)
	}

	var resp authenticateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return goSession.AuthenticateResult{}, oops.Code(CodeBadResponse).With("path", authenticatePath).Wrap(err)
	}
	if !resp.Authenticated || resp.User == nil {
		return goSession.AuthenticateResult{}, nil
	}
	return goSession.AuthenticateResult{Authenticated: true, User: resp.User.toUser()}, nil
}

// FindUser resolves a username, email or phone number. The first match
// wins; no match is [goSession.ErrUserNotFound].
func (c *HTTPClient) FindUser(ctx context.Context, identifier string) (*goSession.User, error) {
	req := searchFor(identifier)

	var users []userPayload
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		status, body, err := c.do(ctx, http.MethodPost, searchPath, req)
		if err != nil {
			return retry.RetryableError(err)
		}
		switch {
		case status == http.StatusNotFound:
			users = nil
			return nil
		case status >= 500:
			return retry.RetryableError(statusError(status, searchPath))
		case status/100 != 2:
			return statusError(status, searchPath)
		}
		users = users[:0]
		if err := json.Unmarshal(body, &users); err != nil {
			return oops.Code(CodeBadResponse).With("path", searchPath).Wrap(err)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("user search failed")
		return nil, err
	}

	for _, u := range users {
		if u.ID != "" {
			return u.toUser(), nil
		}
	}
	return nil, goSession.ErrUserNotFound
}

// UpdateCredential sets a new password for userID.
func (c *HTTPClient) UpdateCredential(ctx context.Context, userID, newPassword string) error {
	status, body, err := c.do(ctx, http.MethodPut, updatePath, updateRequest{UserID: userID, NewPassword: newPassword})
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return oops.Code(CodeUpdateRejected).
			With("status", status).
			With("body", truncate(string(body), 256)).
			Errorf("password update rejected with status %d", status)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := goSession.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, oops.Code(CodeUnavailable).With("path", path).Wrap(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, oops.Code(CodeUnavailable).With("path", path).Wrap(err)
	}
	return resp.StatusCode, body, nil
}

// searchFor picks the search field from the identifier's shape.
func searchFor(identifier string) searchRequest {
	identifier = strings.TrimSpace(identifier)
	switch {
	case strings.Contains(identifier, "@"):
		return searchRequest{Email: identifier}
	case isPhoneNumber(identifier):
		return searchRequest{PhoneNumber: identifier}
	default:
		return searchRequest{Username: identifier}
	}
}

func isPhoneNumber(s string) bool {
	if s == "" {
		return false
	}
	digits := 0
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0, r == '-', r == ' ':
		default:
			return false
		}
	}
	return digits >= 6
}

func statusError(status int, path string) error {
	return oops.Code(CodeUnavailable).
		With("status", status).
		With("path", path).
		Errorf("directory answered %d", status)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// IsUnavailable reports whether err came from an unreachable or failing
// directory rather than a definitive answer.
func IsUnavailable(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return fmt.Sprint(oopsErr.Code()) == CodeUnavailable
}
