package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v int64) *int64 { return &v }

func TestVisibility(t *testing.T) {
	manager := Principal{UserID: 2, Role: RoleManager}
	guard := Principal{UserID: 3, Role: RoleGuard}
	admin := Principal{UserID: 1, Role: RoleAdmin}

	cases := []struct {
		name      string
		principal Principal
		resource  Resource
		scope     Scope
		want      Filter
	}{
		{"admin sees everything", admin, ResourceBuilding, ScopeAll, Filter{Relation: RelationAny}},
		{"manager buildings", manager, ResourceBuilding, ScopeScoped, Filter{Relation: RelationManager, UserID: 2}},
		{"manager entrances", manager, ResourceEntrance, ScopeScoped, Filter{Relation: RelationManager, UserID: 2}},
		{"manager apartments", manager, ResourceApartment, ScopeScoped, Filter{Relation: RelationManager, UserID: 2}},
		{"guard entrances", guard, ResourceEntrance, ScopeScoped, Filter{Relation: RelationGuard, UserID: 3}},
		{"guard apartments", guard, ResourceApartment, ScopeScoped, Filter{Relation: RelationGuard, UserID: 3}},
		{"guard buildings have no scoped meaning", guard, ResourceBuilding, ScopeScoped, Filter{Relation: RelationNone}},
		{"staff self", guard, ResourceStaff, ScopeSelf, Filter{Relation: RelationSelf, UserID: 3}},
		{"missing scope", manager, ResourceStaff, Scope(""), Filter{Relation: RelationNone}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Visibility(tc.principal, tc.resource, tc.scope))
		})
	}
}

func TestFilter_Matches(t *testing.T) {
	managed := Ownership{ManagerID: ptr(2), GuardID: ptr(3), UserID: 9}
	orphan := Ownership{UserID: 9}

	cases := []struct {
		name   string
		filter Filter
		record Ownership
		want   bool
	}{
		{"any matches orphan", Unrestricted(), orphan, true},
		{"none matches nothing", Filter{}, managed, false},
		{"manager match", Filter{Relation: RelationManager, UserID: 2}, managed, true},
		{"other manager", Filter{Relation: RelationManager, UserID: 4}, managed, false},
		{"manager on unmanaged", Filter{Relation: RelationManager, UserID: 2}, orphan, false},
		{"guard match", Filter{Relation: RelationGuard, UserID: 3}, managed, true},
		{"guard on unguarded", Filter{Relation: RelationGuard, UserID: 3}, orphan, false},
		{"self match", Filter{Relation: RelationSelf, UserID: 9}, orphan, true},
		{"self other", Filter{Relation: RelationSelf, UserID: 8}, orphan, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Matches(tc.record))
		})
	}
}

func TestFilter_String(t *testing.T) {
	assert.Equal(t, "any", Unrestricted().String())
	assert.Equal(t, "none", Filter{}.String())
	assert.Equal(t, "guard=3", Filter{Relation: RelationGuard, UserID: 3}.String())
}
