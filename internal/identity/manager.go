package identity

import (
	"fmt"
	"net/http"

	"github.com/dhawalhost/mcpguard/internal/authz"
	"go.uber.org/zap"
)

// Authenticator is one authentication strategy. Implementations return
// an error for missing or invalid credentials; the Manager translates
// that into an unauthenticated context.
type Authenticator interface {
	Authenticate(headers http.Header) (authz.AuthContext, error)
}

// Manager owns the configured strategy and presents the single
// authenticate(headers) contract the host collaborator calls per
// request.
type Manager struct {
	cfg      Config
	strategy Authenticator // nil for MethodNone
	logger   *zap.Logger
}

// NewManager selects the strategy named by cfg.Method. The choice is
// made exactly once here; there is no per-request type inspection.
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &Manager{cfg: cfg, logger: logger.Named("identity")}
	switch cfg.Method {
	case authz.MethodJWT:
		m.strategy = newJWTAuthenticator(cfg)
	case authz.MethodAPIKey:
		a, err := newAPIKeyAuthenticator(cfg)
		if err != nil {
			return nil, err
		}
		m.strategy = a
	case authz.MethodHeader:
		m.strategy = newHeaderAuthenticator(cfg)
	case authz.MethodNone:
		m.strategy = nil
	default:
		return nil, fmt.Errorf("unsupported auth method %q", cfg.Method)
	}
	return m, nil
}

// Authenticate resolves the request headers into an AuthContext. It
// never fails for ordinary credential problems; those come back as
// Authenticated=false with the configured method recorded.
func (m *Manager) Authenticate(headers http.Header) authz.AuthContext {
	if m.strategy == nil {
		return authz.AuthContext{
			Authenticated: true,
			Method:        authz.MethodNone,
			UserID:        "anonymous",
			AgentID:       headerOrDefault(headers, "X-Agent-ID", "unknown"),
		}
	}

	ctx, err := m.strategy.Authenticate(headers)
	if err != nil {
		m.logger.Warn("authentication failed",
			zap.String("method", string(m.cfg.Method)), zap.Error(err))
		return authz.AuthContext{Authenticated: false, Method: m.cfg.Method}
	}
	return ctx
}

// Required reports whether the configuration demands credentials.
func (m *Manager) Required() bool {
	return m.cfg.Method != authz.MethodNone
}

func headerOrDefault(h http.Header, name, fallback string) string {
	if v := h.Get(name); v != "" {
		return v
	}
	return fallback
}
