package permission

import (
	"sort"
	"strings"
)

// Set is an effective permission set produced by Catalog.Resolve.
type Set map[string]struct{}

// NewSet builds a Set from explicit permission strings, used when a
// snapshot of resolved permissions is carried inside an access token.
func NewSet(perms []string) Set {
	set := make(Set, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports whether the set satisfies the required permission.
// Satisfaction is the bare Wildcard, an exact match, or a granted
// suffix wildcard whose prefix the requirement extends.
func (s Set) Has(required string) bool {
	if required == "" {
		return false
	}
	if _, ok := s[Wildcard]; ok {
		return true
	}
	if _, ok := s[required]; ok {
		return true
	}
	for granted := range s {
		if prefix, ok := strings.CutSuffix(granted, ":*"); ok && strings.HasPrefix(required, prefix+":") {
			return true
		}
	}
	return false
}

// List returns the permissions in sorted order, for token snapshots and
// stable test output.
func (s Set) List() []string {
	perms := make([]string, 0, len(s))
	for p := range s {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}
