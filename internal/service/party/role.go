package party

type Role int

const (
	RoleUnset Role = iota
	RoleHost
	RoleParticipant
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleParticipant:
		return "participant"
	default:
		return "unset"
	}
}
