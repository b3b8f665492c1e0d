package rbac

// Permission strings are opaque capability tokens, e.g. "hello:read".
// Wildcard is the one reserved value: a role carrying it grants everything.
const Wildcard = "*"

// Well-known permissions enforced by the API routes.
const (
	PermHelloRead  = "hello:read"
	PermHelloWrite = "hello:write"
	PermRbacRead   = "rbac:read"
	PermRbacWrite  = "rbac:write"
	PermAuditRead  = "audit:read"
)

// IsWildcard reports whether perm is the all-permissions sentinel
func IsWildcard(perm string) bool {
	return perm == Wildcard
}

// PermissionSet is the effective permission set of a caller, expanded once
// from their resolved roles. The wildcard is tracked as a flag so membership
// checks short-circuit before iterating the requested set.
type PermissionSet struct {
	wildcard bool
	perms    map[string]struct{}
}

// EffectivePermissions expands a role list into the caller's permission set.
// This is the single place wildcard detection happens.
func EffectivePermissions(roles []Role) PermissionSet {
	set := PermissionSet{perms: make(map[string]struct{})}
	for _, role := range roles {
		for _, perm := range role.Permissions {
			if IsWildcard(perm) {
				set.wildcard = true
				continue
			}
			set.perms[perm] = struct{}{}
		}
	}
	return set
}

// IsWildcard reports whether the set grants all permissions
func (s PermissionSet) IsWildcard() bool {
	return s.wildcard
}

// Has reports whether the set grants the single permission
func (s PermissionSet) Has(perm string) bool {
	if s.wildcard {
		return true
	}
	_, ok := s.perms[perm]
	return ok
}

// HasAny reports whether the set grants at least one of the permissions.
// An empty requested set never passes without the wildcard.
func (s PermissionSet) HasAny(perms ...string) bool {
	if s.wildcard {
		return true
	}
	for _, perm := range perms {
		if _, ok := s.perms[perm]; ok {
			return true
		}
	}
	return false
}

// HasAll reports whether the set grants every one of the permissions
func (s PermissionSet) HasAll(perms ...string) bool {
	if s.wildcard {
		return true
	}
	for _, perm := range perms {
		if _, ok := s.perms[perm]; !ok {
			return false
		}
	}
	return true
}
