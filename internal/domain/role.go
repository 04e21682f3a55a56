package domain

// Role is decided once per session at room join.
type Role int32

const (
	RoleUnknown Role = iota
	RoleMaster
	RoleFollower
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleFollower:
		return "follower"
	default:
		return "unknown"
	}
}
