// Package principal defines the authentication context the host supplies
// with every call. The core never verifies credentials itself; it only
// authorizes against an already-resolved principal.
package principal

// Builtin principals and groups.
const (
	// RootEmail is the superuser principal.
	RootEmail = "root@system.local"
	// AnonymousEmail identifies unauthenticated callers.
	AnonymousEmail = "anonymous@system.local"
	// LockSystemEmail is the privileged principal used internally for
	// lock cascades so ordinary permission checks don't block them.
	LockSystemEmail = "lock-system@system.local"
	// AdminsGroup members bypass permission checks.
	AdminsGroup = "--admins--"
)

// Mode distinguishes direct caller requests from action-engine calls.
type Mode string

const (
	// ModeDirect marks a request issued directly by the caller.
	ModeDirect Mode = "Direct"
	// ModeAction marks a request issued on behalf of a triggered action.
	ModeAction Mode = "Action"
)

// Principal is an already-authenticated identity.
type Principal struct {
	Email  string   `json:"email"`
	Groups []string `json:"groups"`
}

// AuthContext accompanies every core call.
type AuthContext struct {
	Principal Principal `json:"principal"`
	Mode      Mode      `json:"mode"`
	Tenant    string    `json:"tenant"`
}

// IsAnonymous reports whether the caller is unauthenticated.
func (c AuthContext) IsAnonymous() bool {
	return c.Principal.Email == "" || c.Principal.Email == AnonymousEmail
}

// IsAdmin reports whether the caller is root or belongs to the admins
// group.
func (c AuthContext) IsAdmin() bool {
	if c.Principal.Email == RootEmail {
		return true
	}
	return c.InGroup(AdminsGroup)
}

// InGroup reports whether the caller belongs to the given group.
func (c AuthContext) InGroup(group string) bool {
	for _, g := range c.Principal.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// Anonymous returns the unauthenticated context.
func Anonymous(tenant string) AuthContext {
	return AuthContext{
		Principal: Principal{Email: AnonymousEmail},
		Mode:      ModeDirect,
		Tenant:    tenant,
	}
}

// System returns the privileged lock-system context used for cascades.
func System(tenant string) AuthContext {
	return AuthContext{
		Principal: Principal{Email: LockSystemEmail, Groups: []string{AdminsGroup}},
		Mode:      ModeAction,
		Tenant:    tenant,
	}
}

// Root returns the superuser context.
func Root(tenant string) AuthContext {
	return AuthContext{
		Principal: Principal{Email: RootEmail, Groups: []string{AdminsGroup}},
		Mode:      ModeDirect,
		Tenant:    tenant,
	}
}
