package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mspb-config/config"
	"mspb-config/core/store"
	"mspb-config/core/utils"
)

// AdminHandler serves the category/section metadata pages. All routes are
// employee-only; the route wiring enforces that.
type AdminHandler struct {
	cfg     *config.AppConfig
	specs   store.SpecsStore
	metrics *Metrics
	logger  *utils.Logger
}

func NewAdminHandler(cfg *config.AppConfig, specs store.SpecsStore, metrics *Metrics, logger *utils.Logger) *AdminHandler {
	return &AdminHandler{cfg: cfg, specs: specs, metrics: metrics, logger: logger}
}

// adminReadOnly: metadata pages keep working through plain maintenance mode
// and lock only when the dedicated admin flag is also set.
func (h *AdminHandler) adminReadOnly() bool {
	return h.cfg.ReadOnlyMode && h.cfg.AdminReadOnly
}

func (h *AdminHandler) blocked(w http.ResponseWriter, r *http.Request, p *Principal, res *store.WriteResult) {
	if h.logger != nil {
		h.logger.Warnf("BLOCKED WRITE %s %s user=%s", r.Method, r.URL.Path, p.Username)
	}
	h.metrics.blockedWrite()
	body := map[string]any{
		"success": false,
		"blocked": true,
		"message": "system is in read-only mode",
	}
	if res.Echo != nil {
		body["sqlEcho"] = res.Echo
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *AdminHandler) ListFileSpecs(w http.ResponseWriter, r *http.Request) {
	specs, err := h.specs.ListFileSpecs(r.Context())
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("list file specs: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fileSpecs": specs})
}

type fileSpecUpdateRequest struct {
	Description             string `json:"file_desc"`
	SortOrder               int    `json:"sort_order"`
	CustomSectionsAllowed   bool   `json:"custom_sections_allowed"`
	SectionSortUsedByClient bool   `json:"section_sort_used_by_client"`
}

func (h *AdminHandler) UpdateFileSpec(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	req := fileSpecUpdateRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.specs.UpdateFileSpec(r.Context(), id, store.FileSpecUpdate{
		Description:             req.Description,
		SortOrder:               req.SortOrder,
		CustomSectionsAllowed:   req.CustomSectionsAllowed,
		SectionSortUsedByClient: req.SectionSortUsedByClient,
	}, store.WriteOptions{Actor: p.Username, ReadOnly: h.adminReadOnly()})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if h.logger != nil {
			h.logger.Errorf("update file spec %d: %v", id, err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if res.Blocked {
		h.blocked(w, r, p, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AdminHandler) ListSectionSpecs(w http.ResponseWriter, r *http.Request) {
	fileSpecID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("fileSpecId")), 10, 64)
	if err != nil || fileSpecID <= 0 {
		writeError(w, http.StatusBadRequest, "fileSpecId is required")
		return
	}
	specs, err := h.specs.ListSectionSpecs(r.Context(), fileSpecID)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("list section specs for %d: %v", fileSpecID, err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sectionSpecs": specs})
}

type sectionSpecUpdateRequest struct {
	SectionName      string `json:"section_name"`
	SectionDesc      string `json:"section_desc"`
	SortOrder        int    `json:"sort_order"`
	IsGlobalDefault  bool   `json:"is_global_default"`
	IsOptional       bool   `json:"is_optional"`
	PresenceEnforced bool   `json:"presence_enforced"`
}

func (h *AdminHandler) UpdateSectionSpec(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	id, ok := urlParamInt64(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	req := sectionSpecUpdateRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.SectionName) == "" {
		writeError(w, http.StatusBadRequest, "section_name is required")
		return
	}
	res, err := h.specs.UpdateSectionSpec(r.Context(), id, store.SectionSpecUpdate{
		SectionName:      req.SectionName,
		SectionDesc:      req.SectionDesc,
		SortOrder:        req.SortOrder,
		IsGlobalDefault:  req.IsGlobalDefault,
		IsOptional:       req.IsOptional,
		PresenceEnforced: req.PresenceEnforced,
	}, store.WriteOptions{Actor: p.Username, ReadOnly: h.adminReadOnly()})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if h.logger != nil {
			h.logger.Errorf("update section spec %d: %v", id, err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if res.Blocked {
		h.blocked(w, r, p, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
