package api

import (
	"errors"
	"net/http"

	"promptmarket/internal/account"
	"promptmarket/internal/approval"
	"promptmarket/internal/middleware"
	"promptmarket/internal/util"
)

// writeEngineError maps workflow failures to HTTP. Token failures always
// carry the same message so a link holder learns nothing about the record.
func (h *Handlers) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	rid := middleware.RequestID(r.Context())
	if errors.Is(err, account.ErrInvalidToken) {
		util.WriteError(w, http.StatusBadRequest, "invalid_or_expired_token", account.ErrInvalidToken.Error(), rid)
		return
	}
	if errors.Is(err, account.ErrAlreadyVerified) {
		util.WriteError(w, http.StatusConflict, "already_verified", err.Error(), rid)
		return
	}
	var e *approval.Error
	if !errors.As(err, &e) {
		h.log.Error("unhandled error", "request_id", rid, "path", r.URL.Path, "error", err)
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", rid)
		return
	}
	switch e.Kind {
	case approval.KindValidation:
		util.WriteFieldError(w, http.StatusBadRequest, "validation_failed", e.Message, e.Field, rid)
	case approval.KindDuplicatePending:
		util.WriteFieldError(w, http.StatusConflict, "duplicate_pending", e.Message, e.Field, rid)
	case approval.KindAlreadyReviewed:
		util.WriteError(w, http.StatusConflict, "already_reviewed", "registration has already been reviewed", rid)
	case approval.KindNotFound:
		util.WriteError(w, http.StatusNotFound, "not_found", "registration not found", rid)
	case approval.KindInvalidOrExpiredToken:
		util.WriteError(w, http.StatusBadRequest, "invalid_or_expired_token", e.Message, rid)
	case approval.KindConflict:
		util.WriteFieldError(w, http.StatusConflict, "conflict", e.Message, e.Field, rid)
	default:
		h.log.Error("request failed", "request_id", rid, "path", r.URL.Path, "error", err)
		util.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", rid)
	}
}

func badJSON(w http.ResponseWriter, r *http.Request) {
	util.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", middleware.RequestID(r.Context()))
}
