package middleware

import (
	"reflect"
	"testing"
)

func TestMapGroupsToRole(t *testing.T) {
	adminGroups := []string{"platform-admins"}
	learnerGroups := []string{"learners", "beta-learners"}

	cases := []struct {
		name   string
		groups []string
		want   string
	}{
		{"админ", []string{"platform-admins"}, RoleAdmin},
		{"ученик", []string{"learners"}, RoleLearner},
		{"обе группы — берётся старшая", []string{"learners", "platform-admins"}, RoleAdmin},
		{"незнакомые группы", []string{"marketing"}, ""},
		{"без групп", nil, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapGroupsToRole(tc.groups, adminGroups, learnerGroups); got != tc.want {
				t.Errorf("mapGroupsToRole(%v) = %q, ожидалось %q", tc.groups, got, tc.want)
			}
		})
	}
}

func TestParseScopeString(t *testing.T) {
	got := parseScopeString("vocab:read vocab:write cache:admin")
	want := []string{"vocab:read", "vocab:write", "cache:admin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseScopeString = %v, ожидалось %v", got, want)
	}

	if got := parseScopeString(""); got != nil {
		t.Errorf("пустая строка scopes: получено %v, ожидался nil", got)
	}
}

func TestAuthClaimsScopes(t *testing.T) {
	claims := &AuthClaims{
		SubjectType: SubjectTypeSA,
		Scopes:      []string{ScopeVocabRead},
	}

	if !claims.HasScope(ScopeVocabRead) {
		t.Error("HasScope(vocab:read) = false, ожидалось true")
	}
	if claims.HasScope(ScopeCacheAdmin) {
		t.Error("HasScope(cache:admin) = true, ожидалось false")
	}
	if !claims.HasAnyScope(ScopeCacheAdmin, ScopeVocabRead) {
		t.Error("HasAnyScope обязан найти vocab:read")
	}
}

func TestHighestRole(t *testing.T) {
	if got := highestRole([]string{RoleLearner, RoleAdmin, RoleLearner}); got != RoleAdmin {
		t.Errorf("highestRole = %q, ожидалось %q", got, RoleAdmin)
	}
	if got := highestRole(nil); got != "" {
		t.Errorf("highestRole(nil) = %q, ожидалась пустая строка", got)
	}
}
