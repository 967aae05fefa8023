package rbac

// Agents place calls and read the pool; admins also provision numbers.
const (
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
