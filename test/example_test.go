package test

import (
	"context"
	"errors"

	goSession "github.com/MrEthical07/goSession"
	"github.com/redis/go-redis/v9"
)

// ExampleNew demonstrates engine construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := goSession.DefaultConfig()
	cfg.JWT.Secret = []byte("replace-with-32-bytes-of-secret!")

	engine, _ := goSession.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserDirectory(&exampleDirectory{}).
		Build()
	_ = engine
}

// ExampleEngine_Login shows a typical login call and error handling.
func ExampleEngine_Login() {
	var engine *goSession.Engine
	res, err := engine.Login(context.Background(), "alice", "password")
	switch {
	case errors.Is(err, goSession.ErrInvalidCredentials):
		// 401
	case errors.Is(err, goSession.ErrStoreUnavailable):
		// 503
	case err == nil:
		_ = res.AccessToken
	}
}

// ExampleEngine_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *goSession.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot.Counters[goSession.MetricLoginSuccess]
}

type exampleDirectory struct{}

func (exampleDirectory) Authenticate(context.Context, string, string) (goSession.AuthenticateResult, error) {
	return goSession.AuthenticateResult{}, nil
}

func (exampleDirectory) FindUser(context.Context, string) (*goSession.User, error) {
	return nil, goSession.ErrUserNotFound
}

func (exampleDirectory) UpdateCredential(context.Context, string, string) error {
	return nil
}
