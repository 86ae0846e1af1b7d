package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrEthical07/goSession/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	for _, sub := range []string{"serve", "config"} {
		assert.Contains(t, buf.String(), sub, "help missing %q command", sub)
	}
}

func TestConfigCommand_RedactsSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "absent.env"), "config"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "(32 bytes)")
	assert.NotContains(t, buf.String(), testSecret)
}

func TestConfigCommand_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "absent.env"), "config"})

	assert.Error(t, cmd.Execute())
}

func TestBuildDeps_DevMode(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	d, err := buildDeps(cfg, &serveConfig{dev: true, devPassword: "pw"}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(d.close)

	assert.Len(t, cfg.JWTSecret, 64, "dev mode generates a signing key")

	rec := httptest.NewRecorder()
	d.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/readiness", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := strings.NewReader(`{"username":"alice","password":"pw"}`)
	rec = httptest.NewRecorder()
	d.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/jwt/login", body))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	d.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gosession_login_success_total")
}

func TestBuildDeps_DevRefusedInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	_, err = buildDeps(cfg, &serveConfig{dev: true}, zerolog.Nop())
	assert.Error(t, err)
}

func TestBuildDeps_RequiresDirectoryURL(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("USER_SERVICE_URL", " ")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	_, err = buildDeps(cfg, &serveConfig{}, zerolog.Nop())
	assert.Error(t, err)
}
