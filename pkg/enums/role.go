package enums

// Role is the platform-wide role carried in access tokens.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

var roles = []Role{RoleCustomer, RoleAdmin}

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool { return valid(roles, r) }

func ParseRole(value string) (Role, error) {
	return parse("role", roles, value)
}
