package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims identifies an operator allowed to drive model rebuilds. The
// operator name travels in the registered "sub" claim.
type JWTClaims struct {
	Role string `json:"role"` // admin, operator
	jwt.RegisteredClaims
}

// RateLimitInfo is reported in the X-RateLimit-* response headers.
type RateLimitInfo struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}
