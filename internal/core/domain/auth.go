package domain

// Role defines caller permission level
type Role string

const (
	RoleUser    Role = "user"    // Manage own connections
	RoleAdmin   Role = "admin"   // Operate the service
	RoleService Role = "service" // Internal subsystems borrowing tokens
)

// AuthContext contains authenticated caller info for request context
type AuthContext struct {
	UserID  string `json:"user_id"`
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
}

// IsAdmin checks if the caller is an admin
func (a *AuthContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsService checks if the caller is an internal service
func (a *AuthContext) IsService() bool {
	return a.Role == RoleService
}

// TokenClaims represents the API bearer JWT payload
type TokenClaims struct {
	UserID    string `json:"user_id"`
	Role      Role   `json:"role"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
