package model

// Roles carried in the "role" claim of access tokens.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// Actor is the authenticated caller of a reservation operation. The
// HTTP layer builds it from verified token claims.
type Actor struct {
	UserID uint64
	Role   string
}

// IsAdmin reports whether the actor may perform administrative actions.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
