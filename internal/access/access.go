// Package access answers capability queries against the authenticated user's
// role and permission set. Everything here is pure and allocation-light so
// callers can gate UI affordances on every render.
package access

// Role is one of the closed set of console roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// Wildcard satisfies every permission check. It is evaluated lazily at check
// time; RolePermissions never expands it into the full catalog.
const Wildcard = "manage:all"

// manages lists, per role, the roles it may administer. A role manages
// itself and every role below it.
var manages = map[Role][]Role{
	RoleAdmin:   {RoleAdmin, RoleManager, RoleUser},
	RoleManager: {RoleManager, RoleUser},
	RoleUser:    {RoleUser},
}

// rolePermissions is the statically declared catalog per role. Permission
// keys follow the action:resource convention.
var rolePermissions = map[Role][]string{
	RoleAdmin: {Wildcard},
	RoleManager: {
		"view:pipelines",
		"manage:pipelines",
		"manage:sources",
		"view:reports",
		"manage:reports",
		"view:profile",
		"manage:profile",
	},
	RoleUser: {
		"view:pipelines",
		"view:reports",
		"view:profile",
		"manage:profile",
	},
}

// RolePermissions returns the declared permission set for a role. The
// wildcard is returned as-is, not expanded.
func RolePermissions(role Role) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// Evaluator answers permission queries for a single user. The zero value
// represents an unauthenticated caller and denies everything.
type Evaluator struct {
	role     Role
	perms    map[string]struct{}
	wildcard bool
	present  bool
}

// NewEvaluator builds an evaluator from a user's role and permission set.
func NewEvaluator(role Role, permissions []string) Evaluator {
	e := Evaluator{
		role:    role,
		perms:   make(map[string]struct{}, len(permissions)),
		present: true,
	}
	for _, p := range permissions {
		if p == Wildcard {
			e.wildcard = true
		}
		e.perms[p] = struct{}{}
	}
	return e
}

// Has reports whether the user holds the permission.
func (e Evaluator) Has(permission string) bool {
	if !e.present {
		return false
	}
	if e.wildcard {
		return true
	}
	_, ok := e.perms[permission]
	return ok
}

// HasAny reports whether the user holds at least one of the permissions.
func (e Evaluator) HasAny(permissions ...string) bool {
	for _, p := range permissions {
		if e.Has(p) {
			return true
		}
	}
	return false
}

// HasAll reports whether the user holds every permission listed.
func (e Evaluator) HasAll(permissions ...string) bool {
	if !e.present {
		return false
	}
	for _, p := range permissions {
		if !e.Has(p) {
			return false
		}
	}
	return true
}

// CanManage reports whether the user's role administers the target role.
func (e Evaluator) CanManage(target Role) bool {
	if !e.present {
		return false
	}
	for _, r := range manages[e.role] {
		if r == target {
			return true
		}
	}
	return false
}
