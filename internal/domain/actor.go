package domain

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor is the caller identity resolved by the auth middleware
type Actor struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the actor holds the administrative role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsAnonymous reports whether the request carried no identity
func (a Actor) IsAnonymous() bool {
	return a.UserID == ""
}
