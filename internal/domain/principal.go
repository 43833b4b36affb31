package domain

// Role tags the kind of user behind a request.
type Role string

const (
	RoleCoach    Role = "coach"
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Principal is the authenticated caller. ID is the coach or customer id depending on Role.
type Principal struct {
	ID   string
	Role Role
}

// CanAccessCustomer reports whether the principal may read data owned by customer.
func (p Principal) CanAccessCustomer(customer Customer) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleCustomer:
		return p.ID == customer.ID
	case RoleCoach:
		return customer.CoachedBy(p.ID)
	}
	return false
}
