package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"mspb-config/api/handlers"
	"mspb-config/core/auth"
	"mspb-config/core/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()[:8]
		w.Header().Set("X-Request-Id", reqID)
		logger := s.logger.With("req", reqID, "method", r.Method, "path", r.URL.Path)
		ctx := withRequestLogger(r.Context(), logger)

		// The principal is attached to a context derived inside the gate
		// chain; this holder lets the middleware see it after the fact.
		holder := &principalHolder{}
		ctx = context.WithValue(ctx, principalHolderKey, holder)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		if s.requestsTotal != nil {
			s.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		}
		user := "-"
		if holder.p != nil {
			user = holder.p.Username
		}
		logger.Printf("RESP user=%s status=%d dur=%s bytes=%d", user, rec.status, time.Since(start), rec.size)
	})
}

type requestLoggerKeyType struct{}

var requestLoggerKey requestLoggerKeyType

type principalHolder struct {
	p *handlers.Principal
}

type principalHolderKeyType struct{}

var principalHolderKey principalHolderKeyType

func withRequestLogger(ctx context.Context, l *utils.Logger) context.Context {
	return context.WithValue(ctx, requestLoggerKey, l)
}

func (s *Server) requestLogger(r *http.Request) *utils.Logger {
	if l, ok := r.Context().Value(requestLoggerKey).(*utils.Logger); ok {
		return l
	}
	return s.logger
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// gateResult is one gate's verdict. A denying gate carries its own status
// and body; an allowing gate may extend the request context.
type gateResult struct {
	allow  bool
	status int
	body   map[string]any
	ctx    context.Context
}

func allow(ctx context.Context) gateResult {
	return gateResult{allow: true, ctx: ctx}
}

func deny(status int, body map[string]any) gateResult {
	return gateResult{status: status, body: body}
}

type gate func(r *http.Request) gateResult

// guard runs the gates in order; the first denial short-circuits and later
// gates never see the request.
func (s *Server) guard(h http.HandlerFunc, gates ...gate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, g := range gates {
			res := g(r)
			if !res.allow {
				writeJSON(w, res.status, res.body)
				return
			}
			if res.ctx != nil {
				r = r.WithContext(res.ctx)
			}
		}
		h(w, r)
	}
}

// authenticated verifies the session token and hangs the principal off the
// request. The MFA token, when present, is verified against the session
// principal; a missing, expired, or mismatched one leaves the principal
// unverified rather than failing the gate.
func (s *Server) authenticated(r *http.Request) gateResult {
	token := handlers.TokenFromRequest(r, handlers.AuthCookieName)
	if token == "" {
		return deny(http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
	}
	claims, err := s.tokens.VerifySession(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpired) {
			return deny(http.StatusUnauthorized, map[string]any{"error": "token expired"})
		}
		s.requestLogger(r).Printf("AUTH fail (session token): %v", err)
		return deny(http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
	}

	p := &handlers.Principal{
		Username:   claims.Username,
		UserID:     claims.UserID,
		Email:      claims.Email,
		CustomerID: claims.CustomerID,
	}
	if mfaToken := handlers.TokenFromRequest(r, handlers.MFACookieName); mfaToken != "" {
		if _, err := s.tokens.VerifyMFA(mfaToken, claims.Username); err == nil {
			p.MFAVerified = true
		} else if errors.Is(err, auth.ErrBindingMismatch) {
			s.requestLogger(r).Warnf("AUTH fail (mfa token principal mismatch) user=%s", claims.Username)
		}
	}
	if h, ok := r.Context().Value(principalHolderKey).(*principalHolder); ok {
		h.p = p
	}
	return allow(handlers.WithPrincipal(r.Context(), p))
}

func (s *Server) mfaVerified(r *http.Request) gateResult {
	p := handlers.PrincipalFrom(r.Context())
	if p == nil {
		return deny(http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
	}
	if !p.MFAVerified {
		return deny(http.StatusForbidden, map[string]any{"error": "mfa required", "requireMfa": true})
	}
	return allow(nil)
}

// withRoles resolves the caller's roles without requiring any. Used on
// writes that are open to all authenticated users but still vary their
// response by role.
func (s *Server) withRoles(r *http.Request) gateResult {
	p := handlers.PrincipalFrom(r.Context())
	if p == nil {
		return deny(http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
	}
	roles, err := s.identity.ResolveRoles(r.Context(), p.UserID)
	if err != nil {
		s.requestLogger(r).Errorf("role lookup for %s: %v", p.Username, err)
		return deny(http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
	p.Roles = roles
	return allow(handlers.WithPrincipal(r.Context(), p))
}

// hasAnyRole re-queries the directory on every request so a revoked role
// takes effect immediately.
func (s *Server) hasAnyRole(required ...string) gate {
	return func(r *http.Request) gateResult {
		p := handlers.PrincipalFrom(r.Context())
		if p == nil {
			return deny(http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		}
		roles, err := s.identity.ResolveRoles(r.Context(), p.UserID)
		if err != nil {
			s.requestLogger(r).Errorf("role lookup for %s: %v", p.Username, err)
			return deny(http.StatusInternalServerError, map[string]any{"error": "internal error"})
		}
		p.Roles = roles
		matched := false
		for _, want := range required {
			if p.HasRole(want) {
				matched = true
				break
			}
		}
		if !matched {
			s.requestLogger(r).Printf("PERM fail user=%s need=%v", p.Username, required)
			return deny(http.StatusForbidden, map[string]any{"error": "insufficient role"})
		}
		return allow(handlers.WithPrincipal(r.Context(), p))
	}
}
