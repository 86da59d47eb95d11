package permission

import "testing"

func testCatalog(t *testing.T) *Catalog {
	t.Helper()

	c := NewCatalog()
	roles := map[string][]string{
		"admin":   {Wildcard},
		"analyst": {"reports:read:*", "accounts:read:own"},
		"viewer":  {"reports:read:own"},
		"ops":     {"sessions:revoke:any"},
	}
	for name, perms := range roles {
		if err := c.DefineRole(name, perms); err != nil {
			t.Fatalf("DefineRole(%q) failed: %v", name, err)
		}
	}
	c.Freeze()
	return c
}

func TestWildcardGrantsEverything(t *testing.T) {
	c := testCatalog(t)
	set := c.Resolve("admin")

	for _, required := range []string{
		"reports:read:own",
		"accounts:write:any",
		"anything:at:all",
	} {
		if !set.Has(required) {
			t.Fatalf("wildcard set should satisfy %q", required)
		}
	}
}

// Pins the scope-matching rule: a granted "reports:read:*" satisfies any
// permission extending the "reports:read:" prefix, and nothing else.
func TestSuffixWildcardScopeMatching(t *testing.T) {
	c := testCatalog(t)
	set := c.Resolve("analyst")

	cases := []struct {
		required string
		want     bool
	}{
		{"reports:read:own", true},
		{"reports:read:any", true},
		{"reports:read:team:eu", true},
		{"reports:write:own", false},
		{"reports:readall:own", false},
		{"reports:read", false},
		{"accounts:read:own", true},
		{"accounts:read:any", false},
	}
	for _, tc := range cases {
		if got := set.Has(tc.required); got != tc.want {
			t.Errorf("Has(%q) = %v, want %v", tc.required, got, tc.want)
		}
	}
}

func TestExactMatchOnly(t *testing.T) {
	c := testCatalog(t)
	set := c.Resolve("viewer")

	if !set.Has("reports:read:own") {
		t.Fatal("expected exact match to succeed")
	}
	if set.Has("reports:read:any") {
		t.Fatal("expected non-granted scope to fail")
	}
	if set.Has("") {
		t.Fatal("empty requirement must never be satisfied")
	}
}

func TestResolveUnionsRoles(t *testing.T) {
	c := testCatalog(t)
	set := c.Resolve("viewer", "ops")

	if !set.Has("reports:read:own") || !set.Has("sessions:revoke:any") {
		t.Fatalf("expected union of both roles, got %v", set.List())
	}
	if set.Has("reports:read:any") {
		t.Fatal("union must not widen individual grants")
	}
}

func TestResolveIgnoresUnknownRoles(t *testing.T) {
	c := testCatalog(t)
	set := c.Resolve("nonexistent")
	if len(set) != 0 {
		t.Fatalf("unknown role must resolve to the empty set, got %v", set.List())
	}
}

func TestCatalogFreezeAndDuplicates(t *testing.T) {
	c := NewCatalog()
	if err := c.DefineRole("dup", []string{"a:b:c"}); err != nil {
		t.Fatalf("DefineRole failed: %v", err)
	}
	if err := c.DefineRole("dup", []string{"a:b:c"}); err == nil {
		t.Fatal("expected duplicate role definition to fail")
	}

	c.Freeze()
	if err := c.DefineRole("late", []string{"a:b:c"}); err == nil {
		t.Fatal("expected definition after Freeze to fail")
	}
	if !c.Known("dup") || c.Known("late") {
		t.Fatal("Known must reflect successful definitions only")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := testCatalog(t)
	snapshot := c.Resolve("analyst").List()

	restored := NewSet(snapshot)
	if !restored.Has("reports:read:own") {
		t.Fatal("restored snapshot lost suffix wildcard grant")
	}
	if restored.Has("accounts:read:any") {
		t.Fatal("restored snapshot widened grants")
	}
}
