package keycloak

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
	"github.com/turtacn/molscore/pkg/types/common"
)

type contextKey struct{}

var (
	ErrMissingAuthHeader = errors.New(errors.ErrCodeUnauthorized, "missing authorization header")
	ErrInvalidAuthFormat = errors.New(errors.ErrCodeUnauthorized, "invalid authorization format")
	ErrMissingRole       = errors.New(errors.ErrCodeForbidden, "required role missing")
)

// MiddlewareConfig configures AuthMiddleware.
type MiddlewareConfig struct {
	// SkipPaths are served without a token.
	SkipPaths []string
	// RequiredRole, when set, must be among the token's realm or client
	// roles.
	RequiredRole string
}

// AuthMiddleware rejects requests without a valid bearer token.
type AuthMiddleware struct {
	verifier     TokenVerifier
	logger       logging.Logger
	skipPaths    map[string]bool
	requiredRole string
}

// NewAuthMiddleware creates an AuthMiddleware.
func NewAuthMiddleware(verifier TokenVerifier, logger logging.Logger, cfg MiddlewareConfig) *AuthMiddleware {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	m := &AuthMiddleware{
		verifier:     verifier,
		logger:       logger,
		skipPaths:    make(map[string]bool, len(cfg.SkipPaths)),
		requiredRole: cfg.RequiredRole,
	}
	for _, p := range cfg.SkipPaths {
		m.skipPaths[p] = true
	}
	return m
}

// Handler wraps next. Verified claims are stored in the request context.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r)
		if err != nil {
			m.fail(w, r, err)
			return
		}
		claims, err := m.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			m.fail(w, r, err)
			return
		}
		if m.requiredRole != "" && !claims.HasRole(m.requiredRole) {
			m.fail(w, r, ErrMissingRole.WithDetail(m.requiredRole))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, claims)))
	})
}

func (m *AuthMiddleware) fail(w http.ResponseWriter, r *http.Request, err error) {
	// The token itself is never logged.
	m.logger.Warn("authentication failed",
		logging.String("path", r.URL.Path),
		logging.String("remote_addr", r.RemoteAddr),
		logging.Err(err),
	)

	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeUnauthorized
	}
	status := errors.HTTPStatusForCode(code)
	resp := common.NewErrorResponse(code.String(), "authentication required")
	var ae *errors.AppError
	if errors.As(err, &ae) && (status < http.StatusInternalServerError || code == errors.ErrCodeResourceUnavailable) {
		resp.Error.Message = ae.Message
		resp.Error.Detail = ae.Detail
	}
	resp.RequestID = chimw.GetReqID(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidAuthFormat
	}
	return strings.TrimSpace(token), nil
}

// ClaimsFromContext returns the claims stored by AuthMiddleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok
}
