package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.Handler, retries uint64) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(Config{
		BaseURL:       srv.URL + "/",
		SearchRetries: retries,
		RetryBase:     time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestNewHTTPClientRequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient(Config{})
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/authenticate", func(w http.ResponseWriter, r *http.Request) {
		var req authenticateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch {
		case req.Username == "ghost":
			w.WriteHeader(http.StatusNotFound)
		case req.Username == "alice" && req.Password == "correct-pw":
			_ = json.NewEncoder(w).Encode(authenticateResponse{
				Authenticated: true,
				User: &userPayload{
					ID: "42", Username: "alice", Email: "alice@example.com",
					FirstName: "Alice", Role: "USER",
				},
			})
		default:
			_ = json.NewEncoder(w).Encode(authenticateResponse{Authenticated: false})
		}
	})
	c := newClient(t, mux, 0)
	ctx := context.Background()

	res, err := c.Authenticate(ctx, "alice", "correct-pw")
	require.NoError(t, err)
	require.True(t, res.Authenticated)
	assert.Equal(t, "42", res.User.ID)
	assert.Equal(t, "USER", res.User.Role)
	assert.Equal(t, "Alice", res.User.FirstName)

	res, err = c.Authenticate(ctx, "alice", "wrong")
	require.NoError(t, err)
	assert.False(t, res.Authenticated)

	_, err = c.Authenticate(ctx, "ghost", "x")
	assert.ErrorIs(t, err, goSession.ErrUserNotFound)
}

func TestAuthenticateOutage(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), 0)

	_, err := c.Authenticate(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestAuthenticateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := NewHTTPClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Authenticate(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
}

func TestFindUserPicksSearchField(t *testing.T) {
	var got []searchRequest
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = append(got, req)
		_ = json.NewEncoder(w).Encode([]userPayload{{ID: "42", Username: "alice"}})
	}), 0)
	ctx := context.Background()

	for _, id := range []string{"alice@example.com", "+1 555-0100", "alice"} {
		u, err := c.FindUser(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "42", u.ID)
	}

	require.Len(t, got, 3)
	assert.Equal(t, searchRequest{Email: "alice@example.com"}, got[0])
	assert.Equal(t, searchRequest{PhoneNumber: "+1 555-0100"}, got[1])
	assert.Equal(t, searchRequest{Username: "alice"}, got[2])
}

func TestFindUserNoMatch(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}), 0)

	_, err := c.FindUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, goSession.ErrUserNotFound)
}

func TestFindUserRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]userPayload{{ID: "42", Username: "alice"}})
	}), 3)

	u, err := c.FindUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "42", u.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFindUserGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}), 2)

	_, err := c.FindUser(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFindUserDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}), 3)

	_, err := c.FindUser(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpdateCredential(t *testing.T) {
	var got updateRequest
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/users/password-reset/update", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.UserID == "bad" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	c := newClient(t, mux, 0)
	ctx := context.Background()

	require.NoError(t, c.UpdateCredential(ctx, "42", "new-pw"))
	assert.Equal(t, updateRequest{UserID: "42", NewPassword: "new-pw"}, got)

	err := c.UpdateCredential(ctx, "bad", "new-pw")
	require.Error(t, err)
	assert.False(t, IsUnavailable(err))
}

func TestRequestIDForwarded(t *testing.T) {
	var header string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Request-ID")
		_, _ = w.Write([]byte("[]"))
	}), 0)

	ctx := goSession.WithRequestID(context.Background(), "req-7")
	_, _ = c.FindUser(ctx, "alice")
	assert.Equal(t, "req-7", header)
}
