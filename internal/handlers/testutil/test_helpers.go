package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/adminhub/internal/api"
	"github.com/charlesng35/adminhub/internal/app"
	iauth "github.com/charlesng35/adminhub/internal/auth"
	"github.com/charlesng35/adminhub/internal/cache"
	sharedtestutil "github.com/charlesng35/adminhub/internal/database/testutil"
	"github.com/charlesng35/adminhub/internal/middleware"
	"github.com/charlesng35/adminhub/internal/models"
	"github.com/charlesng35/adminhub/pkg/crypto"
	"github.com/charlesng35/adminhub/pkg/response"
)

// DefaultPassword is the credential assigned by CreatePrincipal.
const DefaultPassword = "Password123!"

// Env is a fully wired API over a seeded private database.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Sessions *iauth.SessionService
	Hasher   crypto.Hasher
	// Redis is set when the env was built WithRedis.
	Redis *miniredis.Miniredis
}

// EnvOption adjusts how NewEnv wires the router.
type EnvOption func(*envOptions)

type envOptions struct {
	mutate []func(*app.Config)
	redis  bool
}

// WithConfig edits the config before services are built.
func WithConfig(fn func(*app.Config)) EnvOption {
	return func(o *envOptions) { o.mutate = append(o.mutate, fn) }
}

// WithRedis backs the session cache and rate limiter with an in-process Redis.
func WithRedis() EnvOption {
	return func(o *envOptions) { o.redis = true }
}

func baseConfig() *app.Config {
	cfg := &app.Config{}
	cfg.Auth.JWT = app.JWTSettings{
		Secret: "test-suite-super-secret-key-32-bytes!!",
		Issuer: "test-suite",
		TTL:    time.Hour,
	}
	cfg.Auth.Session = app.SessionSettings{RefreshTTL: 24 * time.Hour, RefreshLength: 48}
	cfg.Auth.Local = app.LocalAuthSettings{LockoutThreshold: 3, LockoutDuration: time.Minute}
	cfg.Monitoring.Prometheus = app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"}
	return cfg
}

// NewEnv migrates and seeds a database and builds the router over it.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var o envOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := baseConfig()
	for _, fn := range o.mutate {
		fn(cfg)
	}

	env := &Env{
		T:      t,
		DB:     sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData()),
		Hasher: crypto.NewBcryptHasher(bcrypt.MinCost),
	}

	var store cache.Store = cache.NewDatabaseStore(env.DB)
	if o.redis {
		env.Redis = miniredis.RunT(t)
		redisStore, err := cache.NewRedisStore(context.Background(), cache.RedisConfig{Address: env.Redis.Addr(), Timeout: time.Second})
		require.NoError(t, err)
		t.Cleanup(func() { _ = redisStore.Close() })
		store = redisStore
	}

	var err error
	env.JWT, err = iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	sessionCfg := cfg.Auth.SessionServiceConfig()
	sessionCfg.Cache = iauth.NewSessionCache(store)
	env.Sessions, err = iauth.NewSessionService(env.DB, env.JWT, sessionCfg)
	require.NoError(t, err)

	env.Router, err = api.NewRouter(api.Dependencies{
		DB:        env.DB,
		Config:    cfg,
		JWT:       env.JWT,
		Sessions:  env.Sessions,
		RateStore: middleware.NewRateStore(store),
		Cache:     store,
		Hasher:    env.Hasher,
	})
	require.NoError(t, err)
	return env
}

// CreatePrincipal inserts an active principal holding the named roles.
func (e *Env) CreatePrincipal(name, email string, roles ...string) *models.Principal {
	e.T.Helper()

	hashed, err := e.Hasher.Hash(DefaultPassword)
	require.NoError(e.T, err)

	principal := &models.Principal{
		Name:     name,
		Email:    strings.ToLower(email),
		Password: hashed,
		IsActive: true,
	}
	require.NoError(e.T, e.DB.Create(principal).Error)

	if len(roles) > 0 {
		var found []models.Role
		require.NoError(e.T, e.DB.Where("name IN ?", roles).Find(&found).Error)
		require.Len(e.T, found, len(roles))
		for _, role := range found {
			require.NoError(e.T, e.DB.Create(&models.PrincipalRole{PrincipalID: principal.ID, RoleID: role.ID}).Error)
		}
	}
	return principal
}

// CreateSuperAdmin inserts an active principal holding the super-admin role.
func (e *Env) CreateSuperAdmin() *models.Principal {
	e.T.Helper()
	return e.CreatePrincipal("Root", "root@example.com", models.SuperAdminRole)
}

// TokenPair is the token object returned by login and refresh.
type TokenPair = iauth.TokenPair

// PrincipalPayload captures the subset of principal fields returned from auth endpoints.
type PrincipalPayload struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	IsActive bool          `json:"is_active"`
	Roles    []RolePayload `json:"roles"`
}

type RolePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	Tokens      TokenPair        `json:"tokens"`
	Principal   PrincipalPayload `json:"principal"`
	Permissions []string         `json:"permissions"`
}

// Login authenticates with DefaultPassword and returns the issued tokens.
func (e *Env) Login(email string) LoginResult {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": DefaultPassword,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Tokens.AccessToken)
	require.NotEmpty(e.T, result.Tokens.RefreshToken)
	require.Greater(e.T, result.Tokens.ExpiresIn, 0)
	require.Equal(e.T, strings.ToLower(email), result.Principal.Email)

	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// ErrorCode returns the error code of a failed response.
func ErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := DecodeResponse(t, w)
	require.False(t, resp.Success, w.Body.String())
	require.NotNil(t, resp.Error, w.Body.String())
	return resp.Error.Code
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	reader := io.Reader(http.NoBody)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "handler-tests")
	req.RemoteAddr = "192.0.2.10:40000"

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
