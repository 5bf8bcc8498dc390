package hashing

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/google/uuid"
)

// userNamespace scopes deterministic user ids to this service.
var userNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("users.otp-auth-service"))

// Hasher derives stable, secret-keyed identifiers from email addresses so
// shared stores and audit events never carry the raw address.
type Hasher struct {
	secret []byte
}

func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// HasSecret reports whether a non-empty OTP secret was configured.
func (h *Hasher) HasSecret() bool {
	return len(h.secret) > 0
}

// Key returns the hex HMAC-SHA256 of the normalized email.
func (h *Hasher) Key(email string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(email))
	return hex.EncodeToString(mac.Sum(nil))
}

// EqualCode compares two codes in constant time. Inputs are compared
// byte-for-byte with no normalization.
func EqualCode(submitted, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) == 1
}

// UserID maps an email to the same UUIDv5 every time.
func UserID(email string) string {
	return uuid.NewSHA1(userNamespace, []byte(email)).String()
}
