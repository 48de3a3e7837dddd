package session

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	ListSessions(ctx context.Context, userID int64, activeOnly bool, currentKey string) ([]View, error)
	RevokeSession(ctx context.Context, userID int64, sessionKey string) error
	RevokeAllSessions(ctx context.Context, userID int64, exceptKey string) (int64, error)
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

// ListSessions handles GET /security/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	activeOnly := true
	if v := r.URL.Query().Get("active_only"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			activeOnly = b
		}
	}

	views, err := h.Service.ListSessions(r.Context(), user.ID, activeOnly, internal.SessionKeyFromContext(r.Context()))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, SessionsResponse{Sessions: views})
}

// RevokeSession handles DELETE /security/sessions/{key}. The caller's own
// current session can only be ended through logout.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	user, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	key := chi.URLParam(r, "key")
	if key == "" {
		h.HandleServiceError(w, internal.ErrSessionNotFound)
		return
	}
	if key == internal.SessionKeyFromContext(r.Context()) {
		h.HandleServiceError(w, internal.ErrCurrentSession)
		return
	}

	if err := h.Service.RevokeSession(r.Context(), user.ID, key); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeAll handles POST /security/sessions/revoke-all
func (h *Handler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	user, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto RevokeAllDTO
	if r.ContentLength != 0 {
		if err := h.DecodeJSON(r, &dto); err != nil {
			h.HandleServiceError(w, err)
			return
		}
	}

	except := ""
	if dto.keepCurrent() {
		except = internal.SessionKeyFromContext(r.Context())
	}

	count, err := h.Service.RevokeAllSessions(r.Context(), user.ID, except)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, RevokeAllResponse{Revoked: count})
}
