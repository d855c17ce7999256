package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"mspb-config/config"
	"mspb-config/core/hierarchy"
	"mspb-config/core/store"
	"mspb-config/core/utils"
)

type ConfigHandler struct {
	cfg       *config.AppConfig
	overrides store.OverridesStore
	specs     store.SpecsStore
	resolver  *hierarchy.Resolver
	metrics   *Metrics
	logger    *utils.Logger
}

func NewConfigHandler(cfg *config.AppConfig, overrides store.OverridesStore, specs store.SpecsStore, resolver *hierarchy.Resolver, metrics *Metrics, logger *utils.Logger) *ConfigHandler {
	return &ConfigHandler{cfg: cfg, overrides: overrides, specs: specs, resolver: resolver, metrics: metrics, logger: logger}
}

func selectorFromQuery(r *http.Request) hierarchy.ScopeSelector {
	q := r.URL.Query()
	return hierarchy.ScopeSelector{
		CustomerID:   strings.TrimSpace(q.Get("customerId")),
		Category:     strings.TrimSpace(q.Get("category")),
		Organization: strings.TrimSpace(q.Get("organization")),
		Site:         strings.TrimSpace(q.Get("site")),
		Agent:        strings.TrimSpace(q.Get("agent")),
	}
}

// effectiveReadOnly resolves maintenance mode for this caller. Employees
// write through when the bypass flag is set; everyone else is blocked.
func (h *ConfigHandler) effectiveReadOnly(p *Principal) bool {
	if !h.cfg.ReadOnlyMode {
		return false
	}
	if h.cfg.AdminBypassReadOnly && p.HasRole(RoleEmployees) {
		return false
	}
	return true
}

// writeBlockedResponse reports an intercepted write. The rendered statement
// is audit material for employees only; other callers just learn the write
// was blocked.
func (h *ConfigHandler) writeBlockedResponse(w http.ResponseWriter, r *http.Request, p *Principal, res *store.WriteResult) {
	if h.logger != nil {
		h.logger.Warnf("BLOCKED WRITE %s %s user=%s", r.Method, r.URL.Path, p.Username)
	}
	h.metrics.blockedWrite()
	body := map[string]any{
		"success": false,
		"blocked": true,
		"message": "system is in read-only mode",
	}
	if p.HasRole(RoleEmployees) && res.Echo != nil {
		body["sqlEcho"] = res.Echo
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *ConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	sel := selectorFromQuery(r)
	rows, err := h.resolver.ResolveOverrides(r.Context(), sel)
	if err != nil {
		if errors.Is(err, hierarchy.ErrInvalidSelector) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if h.logger != nil {
			h.logger.Errorf("resolve overrides: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"configs": rows})
}

// Defaults lists the GLOBAL-level rows of a category, the terminal values
// every scope falls back to.
func (h *ConfigHandler) Defaults(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}
	rows, err := h.overrides.ListGlobalOverrides(r.Context(), category)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("list defaults: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"configs": rows})
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "configId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid configId")
		return
	}
	row, err := h.overrides.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if h.logger != nil {
			h.logger.Errorf("get config %d: %v", id, err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, row)
}

type updateConfigRequest struct {
	Value    string `json:"value"`
	Property string `json:"property"`
	Level    string `json:"level"`
}

func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	id, ok := urlParamInt64(r, "configId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid configId")
		return
	}
	req := updateConfigRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	level, err := hierarchy.ParseLevel(req.Level)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid level")
		return
	}

	res, err := h.overrides.Update(r.Context(), id, req.Property, req.Value, level, store.WriteOptions{
		Actor:    p.Username,
		ReadOnly: h.effectiveReadOnly(p),
	})
	if err != nil {
		switch {
		case errors.Is(err, hierarchy.ErrInvalidLevel):
			writeError(w, http.StatusBadRequest, "invalid level")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "not found")
		default:
			if h.logger != nil {
				h.logger.Errorf("update config %d: %v", id, err)
			}
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	if res.Blocked {
		h.writeBlockedResponse(w, r, p, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "configId": res.ConfigID})
}

type createConfigRequest struct {
	CustomerID   string              `json:"customerId"`
	Category     string              `json:"category"`
	Section      string              `json:"section"`
	Property     string              `json:"property"`
	Organization string              `json:"organization"`
	Site         string              `json:"site"`
	Agent        string              `json:"agent"`
	Level        string              `json:"level"`
	Value        string              `json:"value"`
	Sort         *hierarchy.SortKeys `json:"sortKeys"`
}

func (h *ConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	req := createConfigRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Category) == "" || strings.TrimSpace(req.Section) == "" || strings.TrimSpace(req.Property) == "" {
		writeError(w, http.StatusBadRequest, "category, section and property are required")
		return
	}
	level, err := hierarchy.ParseLevel(req.Level)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid level")
		return
	}
	row := &hierarchy.StoredOverride{
		CustomerID:   req.CustomerID,
		Category:     req.Category,
		Section:      req.Section,
		Property:     req.Property,
		Organization: req.Organization,
		Site:         req.Site,
		Agent:        req.Agent,
		Level:        level,
		Value:        req.Value,
	}
	if req.Sort != nil {
		row.Sort = *req.Sort
	}

	res, err := h.overrides.Create(r.Context(), row, store.WriteOptions{
		Actor:    p.Username,
		ReadOnly: h.effectiveReadOnly(p),
	})
	if err != nil {
		if errors.Is(err, hierarchy.ErrInvalidLevel) {
			writeError(w, http.StatusBadRequest, "invalid level")
			return
		}
		if h.logger != nil {
			h.logger.Errorf("create config: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if res.Blocked {
		h.writeBlockedResponse(w, r, p, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "configId": res.ConfigID})
}

func (h *ConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	id, ok := urlParamInt64(r, "configId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid configId")
		return
	}
	res, err := h.overrides.Delete(r.Context(), id, store.WriteOptions{
		Actor:    p.Username,
		ReadOnly: h.effectiveReadOnly(p),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "not found")
		case errors.Is(err, store.ErrForbidden):
			writeError(w, http.StatusForbidden, "system default entries cannot be deleted")
		default:
			if h.logger != nil {
				h.logger.Errorf("delete config %d: %v", id, err)
			}
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	if res.Blocked {
		h.writeBlockedResponse(w, r, p, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *ConfigHandler) Organizations(w http.ResponseWriter, r *http.Request) {
	h.flags(w, r, hierarchy.LevelOrg)
}

func (h *ConfigHandler) Sites(w http.ResponseWriter, r *http.Request) {
	h.flags(w, r, hierarchy.LevelSite)
}

func (h *ConfigHandler) Agents(w http.ResponseWriter, r *http.Request) {
	h.flags(w, r, hierarchy.LevelAgent)
}

func (h *ConfigHandler) flags(w http.ResponseWriter, r *http.Request, level hierarchy.Level) {
	sel := selectorFromQuery(r)
	rows, err := h.resolver.ResolveFlags(r.Context(), level, sel)
	if err != nil {
		if errors.Is(err, hierarchy.ErrInvalidSelector) || errors.Is(err, hierarchy.ErrInvalidLevel) {
			writeError(w, http.StatusBadRequest, "customerId and category are required")
			return
		}
		if h.logger != nil {
			h.logger.Errorf("resolve %s flags: %v", level, err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// DataTypeValues lists the permitted values of an enumerated property
// domain, in editor dropdown order.
func (h *ConfigHandler) DataTypeValues(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(r, "dataTypeId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid dataTypeId")
		return
	}
	values, err := h.specs.ListDataTypeValues(r.Context(), id)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("list data type %d values: %v", id, err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": values})
}

type createSectionRequest struct {
	FileSpecID  int64  `json:"fileSpecId"`
	SectionName string `json:"sectionName"`
	SectionDesc string `json:"sectionDesc"`
	SortOrder   int    `json:"sortOrder"`
}

// CreateSection adds a caller-defined section under a file spec. Only file
// specs flagged custom_sections_allowed accept these.
func (h *ConfigHandler) CreateSection(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	req := createSectionRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FileSpecID <= 0 || strings.TrimSpace(req.SectionName) == "" {
		writeError(w, http.StatusBadRequest, "fileSpecId and sectionName are required")
		return
	}
	res, err := h.specs.CreateSectionSpec(r.Context(), store.SectionSpecCreate{
		FileSpecID:  req.FileSpecID,
		SectionName: req.SectionName,
		SectionDesc: req.SectionDesc,
		SortOrder:   req.SortOrder,
	}, store.WriteOptions{
		Actor:    p.Username,
		ReadOnly: h.effectiveReadOnly(p),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "unknown fileSpecId")
		case errors.Is(err, store.ErrForbidden):
			writeError(w, http.StatusForbidden, "custom sections are not allowed for this file spec")
		default:
			if h.logger != nil {
				h.logger.Errorf("create section: %v", err)
			}
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	if res.Blocked {
		h.writeBlockedResponse(w, r, p, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sectionSpecId": res.ConfigID})
}

func (h *ConfigHandler) Categories(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	customerID := strings.TrimSpace(r.URL.Query().Get("customerId"))
	if customerID == "" && p != nil {
		customerID = p.CustomerID
	}
	categories, err := h.overrides.ListCategories(r.Context(), customerID)
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("list categories: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}
