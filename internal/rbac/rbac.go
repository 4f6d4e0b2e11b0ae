package rbac

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// Can reports what a role may do to lists it owns.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin, RoleUser:
		return true
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// CanAccessList decides whether requesterID may perform action on a list
// owned by ownerID. Admins reach every list; everyone else only their own.
func CanAccessList(role Role, requesterID, ownerID string, action Action) bool {
	if requesterID == "" {
		return false
	}
	if role == RoleAdmin {
		return true
	}
	if requesterID != ownerID {
		return false
	}
	return Can(role, action)
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleUser, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}
