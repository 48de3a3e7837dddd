package adminguard

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	AddEntry(ctx context.Context, ip, description string, addedBy *int64) (*Entry, error)
	RemoveEntry(ctx context.Context, ip string) error
	ToggleEntry(ctx context.Context, ip string, active bool) (*Entry, error)
	ListEntries(ctx context.Context, activeOnly bool) ([]*Entry, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// ListEntries handles GET /admin/ip-allowlist
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if v := r.URL.Query().Get("active_only"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			activeOnly = b
		}
	}
	entries, err := h.Service.ListEntries(r.Context(), activeOnly)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, EntriesResponse{Entries: entries})
}

// AddEntry handles POST /admin/ip-allowlist
func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	var dto AddEntryDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var addedBy *int64
	if user, ok := internal.UserFromContext(r.Context()); ok {
		id := user.ID
		addedBy = &id
	}

	entry, err := h.Service.AddEntry(r.Context(), dto.IPAddress, dto.Description, addedBy)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, entry)
}

// RemoveEntry handles DELETE /admin/ip-allowlist/{ip}
func (h *Handler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	ip, err := ipParam(r)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if err := h.Service.RemoveEntry(r.Context(), ip); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleEntry handles PATCH /admin/ip-allowlist/{ip}
func (h *Handler) ToggleEntry(w http.ResponseWriter, r *http.Request) {
	ip, err := ipParam(r)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	var dto ToggleEntryDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if dto.IsActive == nil {
		h.HandleServiceError(w, internal.NewValidationFieldError("is_active", "is_active is required", internal.ErrCodeValidationFailed))
		return
	}

	entry, err := h.Service.ToggleEntry(r.Context(), ip, *dto.IsActive)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, entry)
}

// IPv6 addresses arrive path-escaped.
func ipParam(r *http.Request) (string, error) {
	ip, err := url.PathUnescape(chi.URLParam(r, "ip"))
	if err != nil || ip == "" {
		return "", internal.NewValidationFieldError("ip_address", "invalid ip address", internal.ErrCodeInvalidIPAddress)
	}
	return ip, nil
}
