package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"mspb-config/config"
	"mspb-config/core/auth"
	"mspb-config/core/mfa"
	"mspb-config/core/utils"

	qrcode "github.com/skip2/go-qrcode"
)

type MFAHandler struct {
	cfg     *config.AppConfig
	tokens  *auth.TokenManager
	engine  *mfa.Engine
	metrics *Metrics
	logger  *utils.Logger
}

func NewMFAHandler(cfg *config.AppConfig, tokens *auth.TokenManager, engine *mfa.Engine, metrics *Metrics, logger *utils.Logger) *MFAHandler {
	return &MFAHandler{cfg: cfg, tokens: tokens, engine: engine, metrics: metrics, logger: logger}
}

// Generate provisions a TOTP secret for the caller. Idempotent: once a
// secret exists the response confirms enrollment without ever re-exposing
// the secret or QR code.
func (h *MFAHandler) Generate(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	res, err := h.engine.GetOrInitSecret(r.Context(), p.Username)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("mfa generate for %s: %v", p.Username, err)
		}
		h.metrics.upstreamFailure()
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !res.NeedsSetup {
		writeJSON(w, http.StatusOK, map[string]any{"needsSetup": false, "exists": true})
		return
	}
	png, err := qrcode.Encode(res.OtpauthURI, qrcode.Medium, 256)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("mfa qr encode for %s: %v", p.Username, err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"needsSetup": true,
		"secret":     res.Secret,
		"qrCode":     "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		"issuer":     res.Issuer,
	})
}

type mfaVerifyRequest struct {
	Code string `json:"code"`
}

// Verify checks a one-time code and mints the second-stage token, bound to
// the session principal.
func (h *MFAHandler) Verify(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	req := mfaVerifyRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	ok, err := h.engine.VerifyCode(r.Context(), p.Username, req.Code)
	if err != nil {
		if errors.Is(err, mfa.ErrNotConfigured) {
			writeError(w, http.StatusBadRequest, "mfa not configured")
			return
		}
		if h.logger != nil {
			h.logger.Errorf("mfa verify for %s: %v", p.Username, err)
		}
		h.metrics.upstreamFailure()
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		if h.logger != nil {
			h.logger.Printf("AUTH fail (mfa code) user=%s", p.Username)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid code"})
		return
	}

	token, err := h.tokens.IssueMFA(p.Username, h.cfg.Auth.MFATTL)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("mfa issue token for %s: %v", p.Username, err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	setSessionCookie(w, h.cfg, MFACookieName, token, int(h.cfg.Auth.MFATTL.Seconds()))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
