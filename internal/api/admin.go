package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"promptmarket/internal/middleware"
	"promptmarket/internal/models"
	"promptmarket/internal/settings"
	"promptmarket/internal/util"
)

type reviewRequest struct {
	Notes string `json:"notes"`
}

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<14)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Handlers) AdminListRegistrations(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	items, total, err := h.engine.ListPending(r.Context(), models.PendingQuery{
		Status: r.URL.Query().Get("status"),
		Q:      r.URL.Query().Get("q"),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{
		"items":     toRegistrationViews(items),
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *Handlers) AdminGetRegistration(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, toRegistrationView(rec))
}

func (h *Handlers) AdminApproveRegistration(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.User(r.Context())
	var req reviewRequest
	if err := decodeOptional(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	out, err := h.engine.ApproveByAdmin(r.Context(), chi.URLParam(r, "id"), admin.ID, req.Notes)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "approved",
		"registration": toRegistrationView(out.Pending),
		"user":         toUserView(out.User),
	})
}

func (h *Handlers) AdminRejectRegistration(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.User(r.Context())
	var req reviewRequest
	if err := decodeOptional(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	rec, err := h.engine.RejectByAdmin(r.Context(), chi.URLParam(r, "id"), admin.ID, req.Notes)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "rejected",
		"registration": toRegistrationView(rec),
	})
}

func (h *Handlers) AdminResendNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ResendNotification(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *Handlers) AdminCleanupRegistrations(w http.ResponseWriter, r *http.Request) {
	rid := middleware.RequestID(r.Context())
	olderThan := h.cfg.CleanupRetention
	if v := strings.TrimSpace(r.URL.Query().Get("older_than")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			util.WriteFieldError(w, http.StatusBadRequest, "validation_failed", "older_than must be a duration such as 720h", "older_than", rid)
			return
		}
		olderThan = d
	}
	n, err := h.engine.CleanupPromoted(r.Context(), olderThan)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"deleted": n, "older_than": olderThan.String()})
}

func (h *Handlers) AdminGetSetting(w http.ResponseWriter, r *http.Request) {
	rid := middleware.RequestID(r.Context())
	key := chi.URLParam(r, "key")
	st, found, err := h.settings.Lookup(r.Context(), key)
	if err != nil {
		h.log.Error("read setting", "request_id", rid, "key", key, "error", err)
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", rid)
		return
	}
	if !found {
		util.WriteError(w, http.StatusNotFound, "not_found", "setting not found", rid)
		return
	}
	util.WriteJSON(w, http.StatusOK, st)
}

func (h *Handlers) AdminPutSetting(w http.ResponseWriter, r *http.Request) {
	rid := middleware.RequestID(r.Context())
	admin, _ := middleware.User(r.Context())
	key := chi.URLParam(r, "key")
	var req struct {
		Value       string `json:"value"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<14)).Decode(&req); err != nil {
		badJSON(w, r)
		return
	}
	if err := h.settings.Set(r.Context(), key, req.Value, req.Description, &admin.ID); err != nil {
		if errors.Is(err, settings.ErrInvalidValue) {
			util.WriteFieldError(w, http.StatusBadRequest, "validation_failed", err.Error(), "value", rid)
			return
		}
		h.log.Error("write setting", "request_id", rid, "key", key, "error", err)
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", rid)
		return
	}
	meta, _ := json.Marshal(map[string]string{"key": key, "value": strings.TrimSpace(req.Value)})
	if err := h.st.InsertAudit(r.Context(), &admin.ID, "setting.update", "setting:"+key, string(meta)); err != nil {
		h.log.Warn("audit write failed", "request_id", rid, "action", "setting.update", "error", err)
	}
	st, _, err := h.settings.Lookup(r.Context(), key)
	if err != nil {
		h.log.Error("read setting", "request_id", rid, "key", key, "error", err)
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", rid)
		return
	}
	util.WriteJSON(w, http.StatusOK, st)
}

func (h *Handlers) AdminAuditLog(w http.ResponseWriter, r *http.Request) {
	rid := middleware.RequestID(r.Context())
	page, pageSize := parsePagination(r)
	items, err := h.st.ListAudit(r.Context(), models.AuditQuery{
		Action: r.URL.Query().Get("action"),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		h.log.Error("list audit log", "request_id", rid, "error", err)
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", rid)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"items": items, "page": page, "page_size": pageSize})
}
