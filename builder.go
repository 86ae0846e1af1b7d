package goSession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/internal/stores"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	sessionStore SessionStore
	directory    UserDirectory
	auditSink    AuditSink
	logger       zerolog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used by the session store, the reset store and
// the throttles. A standalone, sentinel or cluster client works.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore overrides the Redis session store. Implementations must
// wrap outages in [session.ErrRedisUnavailable] and report misses as
// [session.ErrSessionNotFound].
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessionStore = store
	return b
}

// WithUserDirectory sets the directory that checks credentials and stores
// password hashes. Build fails without one.
func (b *Builder) WithUserDirectory(dir UserDirectory) *Builder {
	b.directory = dir
	return b
}

// WithAuditSink sets the audit destination. It is ignored unless
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token and session timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder can be
// used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.directory == nil {
		return nil, errors.New("user directory required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- TOKEN CODEC --------
	codec, err := jwt.NewCodec(jwt.Config{
		Secret: cloneBytes(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		Leeway: cfg.JWT.Leeway,
		Now:    now,
	})
	if err != nil {
		return nil, err
	}

	// -------- STORES --------
	sessionStore := b.sessionStore
	if sessionStore == nil {
		sessionStore = session.NewStore(b.redis, session.Config{
			Prefix:           cfg.Session.RedisPrefix,
			OperationTimeout: cfg.Session.OperationTimeout,
			Now:              now,
		})
	}

	engine := &Engine{
		config:       cfg,
		codec:        codec,
		sessionStore: sessionStore,
		resetStore:   stores.NewPasswordResetStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.OperationTimeout),
		rateLimiter: rate.New(b.redis, rate.Config{
			Prefix:                cfg.Session.RedisPrefix,
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
			MaxResetRequests:      cfg.PasswordReset.MaxRequests,
			ResetCooldownDuration: cfg.PasswordReset.RequestCooldown,
		}),
		directory: b.directory,
		logger:    b.logger.With().Str("component", "gosession").Logger(),
		now:       now,
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	cfg := e.config

	mintAccess := func(user session.CachedUser) (string, time.Time, error) {
		token, err := e.codec.Mint(jwt.KindAccess, user.ID, user.Username, user.Role, cfg.JWT.AccessTTL)
		return token, e.now().Add(cfg.JWT.AccessTTL), err
	}
	mintRefresh := func(userID string) (string, time.Time, error) {
		token, err := e.codec.Mint(jwt.KindRefresh, userID, "", "", cfg.JWT.RefreshTTL)
		return token, e.now().Add(cfg.JWT.RefreshTTL), err
	}

	login := flows.LoginDeps{
		Authenticate:                 e.authenticate,
		MintAccess:                   mintAccess,
		MintRefresh:                  mintRefresh,
		Now:                          e.now,
		ClientIP:                     clientIPFromContext,
		RejectPasswordChangeRequired: cfg.Login.RejectPasswordChangeRequired,
		SessionStore:                 e.sessionStore,
		RateLimited:                  rate.ErrRateLimited,
		UserNotFound:                 ErrUserNotFound,
		StoreUnavailable:             session.ErrRedisUnavailable,
		Warn:                         e.warn,
	}
	if cfg.Security.EnableLoginThrottle {
		login.RateLimiter = e.rateLimiter
	}

	reset := flows.PasswordResetDeps{
		FindUserID:       e.findUserID,
		UpdateCredential: e.directory.UpdateCredential,
		NewToken:         internal.NewResetToken,
		HashToken:        internal.HashResetToken,
		ValidToken:       internal.ValidResetToken,
		Now:              e.now,
		Store:            e.resetStore,
		RateLimited:      rate.ErrRateLimited,
		MaskUnknown:      cfg.PasswordReset.MaskUnknownIdentifier,
		ResetTTL:         cfg.PasswordReset.ResetTTL,
		Retention:        cfg.PasswordReset.ExpiredRetention,
		ClaimLease:       cfg.PasswordReset.ClaimLease,
		Warn:             e.warn,
	}
	if cfg.PasswordReset.EnableRequestThrottle {
		reset.Limiter = e.rateLimiter
	}
	if cfg.PasswordReset.InvalidateSessionsOnReset {
		reset.InvalidateSessions = e.sessionStore.DeleteByUserID
	}

	return flows.Deps{
		Login: login,
		Refresh: flows.RefreshDeps{
			VerifyRefresh: func(token string) (*jwt.Claims, error) {
				return e.codec.VerifyKind(token, jwt.KindRefresh)
			},
			MintAccess:   mintAccess,
			SessionStore: e.sessionStore,
		},
		Validate: flows.ValidateDeps{
			VerifyAccess: func(token string) (*jwt.Claims, error) {
				return e.codec.VerifyKind(token, jwt.KindAccess)
			},
			SessionStore:     e.sessionStore,
			StoreUnavailable: session.ErrRedisUnavailable,
		},
		Logout: flows.LogoutDeps{
			SessionStore: e.sessionStore,
		},
		PasswordReset: reset,
	}
}

// authenticate adapts the directory to the login flow. An unknown user
// surfaces as ErrUserNotFound; any other directory error is an outage.
func (e *Engine) authenticate(ctx context.Context, username, password string) (bool, *session.CachedUser, error) {
	res, err := e.directory.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil, err
		}
		return false, nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if !res.Authenticated {
		return false, nil, nil
	}
	return true, cachedFromUser(res.User), nil
}

func (e *Engine) findUserID(ctx context.Context, identifier string) (string, error) {
	user, err := e.directory.FindUser(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if user == nil {
		return "", nil
	}
	return user.ID, nil
}
