package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"mspb-config/config"
	"mspb-config/core/auth"
	"mspb-config/core/directory"
	"mspb-config/core/mfa"
	"mspb-config/core/utils"
)

type AuthHandler struct {
	cfg      *config.AppConfig
	tokens   *auth.TokenManager
	identity *directory.Resolver
	engine   *mfa.Engine
	metrics  *Metrics
	logger   *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, tokens *auth.TokenManager, identity *directory.Resolver, engine *mfa.Engine, metrics *Metrics, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, tokens: tokens, identity: identity, engine: engine, metrics: metrics, logger: logger}
}

type mojoLoginRequest struct {
	ExternalToken string `json:"externalToken"`
}

// MojoLogin exchanges an externally issued identity token for a session
// cookie. The embedded user id is re-read from the directory; nothing else
// in the external token is trusted.
func (h *AuthHandler) MojoLogin(w http.ResponseWriter, r *http.Request) {
	req := mojoLoginRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExternalToken == "" {
		writeError(w, http.StatusBadRequest, "externalToken is required")
		return
	}

	user, err := h.identity.ResolveExternalIdentity(r.Context(), req.ExternalToken)
	if err != nil {
		switch {
		case errors.Is(err, directory.ErrInvalidExternalToken), errors.Is(err, directory.ErrUnknownUser):
			if h.logger != nil {
				h.logger.Printf("AUTH fail (mojo-login): %v", err)
			}
			writeError(w, http.StatusUnauthorized, "unauthorized")
		default:
			if h.logger != nil {
				h.logger.Errorf("mojo-login directory lookup: %v", err)
			}
			h.metrics.upstreamFailure()
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	token, err := h.tokens.IssueSession(auth.SessionUser{
		Username:   user.LoginName,
		UserID:     user.UserID,
		Email:      user.Email,
		CustomerID: user.CustomerID,
	}, h.cfg.Auth.SessionTTL)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("mojo-login issue session: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	setSessionCookie(w, h.cfg, AuthCookieName, token, int(h.cfg.Auth.SessionTTL.Seconds()))

	// An unreachable secret service must not lock everyone out: MFA degrades
	// to not-required for this login, and the degradation is logged.
	requireMfa, err := h.engine.Enrolled(r.Context(), user.LoginName)
	if err != nil {
		if h.logger != nil {
			h.logger.Warnf("mfa probe failed for %s, skipping mfa this login: %v", user.LoginName, err)
		}
		h.metrics.upstreamFailure()
		requireMfa = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"requireMfa": requireMfa,
		"user": map[string]any{
			"username":   user.LoginName,
			"email":      user.Email,
			"customerId": user.CustomerID,
		},
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w, h.cfg, AuthCookieName)
	clearSessionCookie(w, h.cfg, MFACookieName)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AuthHandler) Check(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"username":      p.Username,
		"customerId":    p.CustomerID,
		"mfaVerified":   p.MFAVerified,
	})
}

// Roles re-queries the directory so revocations take effect immediately.
func (h *AuthHandler) Roles(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	roles, err := h.identity.ResolveRoles(r.Context(), p.UserID)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("role lookup for %s: %v", p.Username, err)
		}
		h.metrics.upstreamFailure()
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}
