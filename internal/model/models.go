package model

import "time"

// AuthProviderEmail is the provider recorded for users verified by email OTP.
const AuthProviderEmail = "email"

// -------------------- OTP MODEL --------------------

// OTPRecord is the one outstanding verification challenge for an email.
type OTPRecord struct {
	Email     string    `json:"email"`      // normalized, lowercase
	Code      string    `json:"code"`       // exactly 6 ASCII digits
	ExpiresAt time.Time `json:"expires_at"` // invalid after this instant
	Attempts  int       `json:"attempts"`   // failed verifications so far
}

// Expired reports whether the record is past its expiry at now.
func (r *OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// -------------------- USER / SESSION MODEL --------------------

// UserRecord is the minimal user returned after a successful verification.
type UserRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	AuthProvider string    `json:"authProvider"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SessionToken is an opaque bearer credential.
type SessionToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionClaims is what a session token carries.
type SessionClaims struct {
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AuthResult is the outcome of a successful verification.
type AuthResult struct {
	Token     string     `json:"token"`
	User      UserRecord `json:"user"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// -------------------- API DTOs --------------------

type SendOTPRequest struct {
	Email string `json:"email" validate:"required,contains=@"`
}

type SendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

// ErrorResponse keeps the human-readable error string; Code is set for
// verification failures so clients can branch without parsing text.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type HealthResponse struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	EmailConfigured bool      `json:"emailConfigured"`
}
