// Package permission resolves role names to effective permission sets.
//
// Permissions are strings of the form "resource:action:scope". The
// catalog is populated once at startup, frozen, and read concurrently
// afterwards; administrative mutation of the role catalog happens out
// of process and is picked up on restart.
//
// Two wildcard forms exist:
//
//   - the bare Wildcard "*" grants every permission and short-circuits
//     all checks;
//   - a trailing ":*" segment is a suffix wildcard: "reports:read:*"
//     satisfies any permission extending the "reports:read:" prefix,
//     such as "reports:read:own".
package permission

import (
	"errors"
	"fmt"
	"sync"
)

// Wildcard is the distinguished permission granting everything.
const Wildcard = "*"

// Catalog maps role names to their granted permission strings.
type Catalog struct {
	mu     sync.RWMutex
	roles  map[string][]string
	frozen bool
}

// NewCatalog returns an empty, unfrozen catalog.
func NewCatalog() *Catalog {
	return &Catalog{roles: make(map[string][]string)}
}

// DefineRole registers a role and its granted permissions. Roles can
// only be defined before Freeze, and each role exactly once.
func (c *Catalog) DefineRole(name string, perms []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return errors.New("permission: catalog frozen")
	}
	if name == "" {
		return errors.New("permission: role name empty")
	}
	if _, exists := c.roles[name]; exists {
		return fmt.Errorf("permission: role %q already defined", name)
	}
	for _, p := range perms {
		if p == "" {
			return fmt.Errorf("permission: role %q grants empty permission", name)
		}
	}

	granted := make([]string, len(perms))
	copy(granted, perms)
	c.roles[name] = granted
	return nil
}

// Freeze prevents further role definitions. Must be called before the
// catalog is used for resolution.
func (c *Catalog) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
}

// Known reports whether the role is defined.
func (c *Catalog) Known(role string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.roles[role]
	return ok
}

// Resolve returns the union of permissions granted by the given roles.
// Unknown roles contribute nothing; resolution is a pure read.
func (c *Catalog) Resolve(roles ...string) Set {
	c.mu.RLock()
	defer c.mu.RUnlock()

	set := make(Set)
	for _, role := range roles {
		for _, p := range c.roles[role] {
			set[p] = struct{}{}
		}
	}
	return set
}
