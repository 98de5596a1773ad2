package access

import "testing"

func TestWildcardSatisfiesEverything(t *testing.T) {
	e := NewEvaluator(RoleAdmin, RolePermissions(RoleAdmin))
	for _, p := range []string{"manage:users", "view:pipelines", "made:up"} {
		if !e.Has(p) {
			t.Fatalf("wildcard holder should have %q", p)
		}
	}
	if !e.HasAll("view:reports", "manage:sources") {
		t.Fatalf("wildcard holder should pass HasAll")
	}
}

func TestRegularUserPermissions(t *testing.T) {
	e := NewEvaluator(RoleUser, []string{"view:profile"})

	if e.Has("manage:users") {
		t.Fatalf("user must not hold manage:users")
	}
	if !e.HasAny("view:profile", "manage:users") {
		t.Fatalf("HasAny should see view:profile")
	}
	if e.HasAll("view:profile", "manage:users") {
		t.Fatalf("HasAll must fail on missing permission")
	}
	if !e.HasAll("view:profile") {
		t.Fatalf("HasAll with only held permissions should pass")
	}
}

func TestZeroEvaluatorDeniesAll(t *testing.T) {
	var e Evaluator
	if e.Has("view:profile") || e.HasAny("view:profile") || e.HasAll() || e.CanManage(RoleUser) {
		t.Fatalf("unauthenticated evaluator must deny every query")
	}
}

func TestCanManageHierarchy(t *testing.T) {
	cases := []struct {
		role   Role
		target Role
		want   bool
	}{
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleManager, true},
		{RoleAdmin, RoleUser, true},
		{RoleManager, RoleAdmin, false},
		{RoleManager, RoleManager, true},
		{RoleManager, RoleUser, true},
		{RoleUser, RoleManager, false},
		{RoleUser, RoleUser, true},
	}
	for _, tc := range cases {
		e := NewEvaluator(tc.role, nil)
		if got := e.CanManage(tc.target); got != tc.want {
			t.Fatalf("CanManage(%s -> %s) = %v, want %v", tc.role, tc.target, got, tc.want)
		}
	}
}

func TestRolePermissionsIsACopy(t *testing.T) {
	perms := RolePermissions(RoleUser)
	if len(perms) == 0 {
		t.Fatalf("user role should declare permissions")
	}
	perms[0] = "mutated"
	if RolePermissions(RoleUser)[0] == "mutated" {
		t.Fatalf("RolePermissions must not expose internal state")
	}
}
