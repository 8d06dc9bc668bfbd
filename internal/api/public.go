package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"promptmarket/internal/approval"
	"promptmarket/internal/captcha"
	"promptmarket/internal/middleware"
	"promptmarket/internal/util"
)

type registerRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captcha_token"`
}

type registerResponse struct {
	approval.RegisterResult
	Status string `json:"status"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	rid := middleware.RequestID(r.Context())
	var req registerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		badJSON(w, r)
		return
	}
	ip := middleware.ClientIP(r, h.cfg.TrustProxy)
	if err := h.captcha.Verify(r.Context(), req.CaptchaToken, ip); err != nil {
		if errors.Is(err, captcha.ErrCaptchaUnavailable) {
			h.log.Warn("captcha verifier unavailable", "request_id", rid, "error", err)
			util.WriteError(w, http.StatusServiceUnavailable, "captcha_unavailable", "captcha verification is unavailable", rid)
			return
		}
		util.WriteError(w, http.StatusBadRequest, "captcha_required", "captcha validation failed", rid)
		return
	}
	res, err := h.engine.Register(r.Context(), approval.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	status := "registered"
	if res.RequiresApproval {
		status = "pending_approval"
	}
	util.WriteJSON(w, http.StatusCreated, registerResponse{RegisterResult: res, Status: status})
}

func (h *Handlers) ApproveLink(w http.ResponseWriter, r *http.Request) {
	out, err := h.engine.ApproveByToken(r.Context(), r.URL.Query().Get("token"))
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

func (h *Handlers) RejectLink(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.RejectByToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "rejected",
		"registration": toRegistrationView(rec),
	})
}

func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"status": "verified", "user": toUserView(u)})
}

func (h *Handlers) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&req); err != nil {
		badJSON(w, r)
		return
	}
	if err := h.accounts.ResendVerification(r.Context(), req.Email); err != nil {
		h.log.Error("resend verification failed", "request_id", middleware.RequestID(r.Context()), "error", err)
	}
	util.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handlers) PasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&req); err != nil {
		badJSON(w, r)
		return
	}
	if err := h.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handlers) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&req); err != nil {
		badJSON(w, r)
		return
	}
	if err := h.accounts.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
