package handlers

import (
	"net/http"

	"mspb-config/core/store"
	"mspb-config/core/utils"
)

// DirectoryHandler serves read-only directory lookups, currently just the
// employee-side customer picker.
type DirectoryHandler struct {
	users  store.DirectoryStore
	logger *utils.Logger
}

func NewDirectoryHandler(users store.DirectoryStore, logger *utils.Logger) *DirectoryHandler {
	return &DirectoryHandler{users: users, logger: logger}
}

func (h *DirectoryHandler) Customers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.users.ListCustomers(r.Context())
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("list customers: %v", err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}
