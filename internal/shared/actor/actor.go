package actor

type Role string

const (
	RoleClient   Role = "client"
	RoleOwner    Role = "owner"
	RoleProvider Role = "provider" // service provider (maintenance, agents)
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Actor is the request-scoped identity every core operation receives.
// It is built at the transport boundary and never read from ambient state,
// so authorization is a pure function of (record, actor, transition).
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsSystem() bool { return a.Role == RoleSystem }

func System() Actor { return Actor{UserID: "system", Role: RoleSystem} }
