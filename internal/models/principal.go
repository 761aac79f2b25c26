package models

const RoleAdmin = "admin"

// Principal is a verified caller identity handed in by the auth boundary
type Principal struct {
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Authenticated reports whether the principal carries an identity at all
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}
