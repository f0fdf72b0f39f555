package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates the platform roles.
type UserRole string

const (
	// RoleAdmin administers classrooms and scenarios.
	RoleAdmin UserRole = "ADMIN"
	// RoleMember is an enrolled participant submitting inputs.
	RoleMember UserRole = "MEMBER"
)

// JWTClaims carries the authenticated identity through requests.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	OrgID  string   `json:"org_id"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
