package service

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"otp-auth-service/internal/model"
)

// IssueSessionToken builds the bearer token handed out after verification.
//
// The token is base64url-encoded JSON of the claims with no signature, so
// anyone can read or forge one. Swap this function for a signed format
// before relying on the token for authorization.
func IssueSessionToken(email string, issuedAt time.Time, ttl time.Duration) (model.SessionToken, error) {
	claims := model.SessionClaims{
		Email:     email,
		IssuedAt:  issuedAt.UTC(),
		ExpiresAt: issuedAt.Add(ttl).UTC(),
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return model.SessionToken{}, fmt.Errorf("failed to encode session token: %w", err)
	}
	return model.SessionToken{
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// DecodeSessionToken reverses IssueSessionToken. It does not check expiry.
func DecodeSessionToken(token string) (*model.SessionClaims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("malformed session token: %w", err)
	}
	var claims model.SessionClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("malformed session token: %w", err)
	}
	return &claims, nil
}
