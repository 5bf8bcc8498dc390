package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"otp-auth-service/internal/model"
	"otp-auth-service/internal/service"
	"otp-auth-service/internal/util"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	msgOTPSent          = "OTP sent successfully"
	msgInvalidEmail     = "Invalid email address"
	msgTooManyAttempts  = "Too many attempts. Please try again later."
	msgSendFailed       = "Failed to send OTP"
	msgMissingFields    = "Email and code are required"
	msgVerifyFailed     = "Failed to verify OTP"
	msgNoOTP            = "No OTP found. Please request a new code."
	msgOTPExpired       = "OTP expired. Please request a new code."
	msgAttemptsExceeded = "Too many failed attempts. Please request a new code."
	msgInvalidCode      = "Invalid verification code."
)

// AuthHandler serves the email OTP endpoints.
type AuthHandler struct {
	otpService *service.OTPService
	logger     *zap.Logger
}

func NewAuthHandler(otpService *service.OTPService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		otpService: otpService,
		logger:     logger,
	}
}

// RegisterRoutes registers the OTP routes under the caller's prefix.
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Post("/send-otp", h.SendOTP)
	router.Post("/verify-otp", h.VerifyOTP)
}

// SendOTP issues a code for the submitted email and mails it.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	var req model.SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, msgInvalidEmail, "")
		return
	}
	if err := util.ValidateStruct(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, msgInvalidEmail, "")
		return
	}

	err := h.otpService.RequestCode(ctx, req.Email)
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		h.respondWithError(w, http.StatusBadRequest, err, msgInvalidEmail, "")
		return
	case errors.Is(err, service.ErrRateLimited):
		h.respondWithError(w, http.StatusTooManyRequests, err, msgTooManyAttempts, "")
		return
	case err != nil:
		h.respondWithError(w, http.StatusInternalServerError, err, msgSendFailed, "")
		return
	}

	h.respondWithJSON(w, http.StatusOK, model.SendOTPResponse{Success: true, Message: msgOTPSent})
	h.logger.Info("OTP requested via HTTP",
		util.String("email", util.MaskEmail(util.NormalizeEmail(req.Email))),
		util.Duration("duration", time.Since(startTime)),
	)
}

// VerifyOTP checks a submitted code and returns a session on success.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, msgMissingFields, "")
		return
	}
	if err := util.ValidateStruct(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, msgMissingFields, "")
		return
	}

	result, err := h.otpService.Verify(ctx, req.Email, req.Code)
	if err != nil {
		if code := service.FailureCode(err); code != "" {
			h.respondWithError(w, http.StatusBadRequest, err, verifyMessage(err), code)
			return
		}
		h.respondWithError(w, http.StatusInternalServerError, err, msgVerifyFailed, "")
		return
	}

	h.respondWithJSON(w, http.StatusOK, result)
}

// Health reports liveness and whether mail delivery is configured.
func (h *AuthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, model.HealthResponse{
		Status:          "ok",
		Timestamp:       time.Now().UTC(),
		EmailConfigured: h.otpService.MailConfigured(),
	})
}

func verifyMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrNoActiveChallenge):
		return msgNoOTP
	case errors.Is(err, service.ErrExpired):
		return msgOTPExpired
	case errors.Is(err, service.ErrAttemptsExhausted):
		return msgAttemptsExceeded
	default:
		return msgInvalidCode
	}
}

// respondWithJSON sends a JSON response
func (h *AuthHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError sends an error response
func (h *AuthHandler) respondWithError(w http.ResponseWriter, statusCode int, err error, message, code string) {
	fields := []zap.Field{
		util.ErrorField(err),
		util.Int("status_code", statusCode),
		util.String("message", message),
	}
	if statusCode >= http.StatusInternalServerError {
		h.logger.Error("HTTP error response", fields...)
	} else {
		h.logger.Warn("HTTP error response", fields...)
	}
	h.respondWithJSON(w, statusCode, model.ErrorResponse{Error: message, Code: code})
}
