package access

import "fmt"

// Relation names the link between a record and the caller that makes the
// record visible.
type Relation uint8

const (
	// RelationNone matches no record.
	RelationNone Relation = iota
	// RelationAny matches every record.
	RelationAny
	// RelationManager matches records whose building is managed by the caller.
	RelationManager
	// RelationGuard matches records whose entrance is guarded by the caller.
	RelationGuard
	// RelationSelf matches the caller's own user record.
	RelationSelf
)

func (r Relation) String() string {
	switch r {
	case RelationAny:
		return "any"
	case RelationManager:
		return "manager"
	case RelationGuard:
		return "guard"
	case RelationSelf:
		return "self"
	default:
		return "none"
	}
}

// Filter narrows a resource collection to what a caller may see. Repositories
// apply it before any lookup by id, so a record outside the filter is
// indistinguishable from a missing one.
type Filter struct {
	Relation Relation
	UserID   int64
}

// Unrestricted returns the filter that matches every record.
func Unrestricted() Filter {
	return Filter{Relation: RelationAny}
}

type scopedKey struct {
	role     Role
	resource Resource
}

// scopedRelations defines what "scoped" means for each role and resource.
var scopedRelations = map[scopedKey]Relation{
	{RoleManager, ResourceBuilding}:  RelationManager,
	{RoleManager, ResourceEntrance}:  RelationManager,
	{RoleManager, ResourceApartment}: RelationManager,
	{RoleGuard, ResourceEntrance}:    RelationGuard,
	{RoleGuard, ResourceApartment}:   RelationGuard,
}

// Visibility returns the filter for principal given the scope granted by the
// capability table.
func Visibility(p Principal, resource Resource, scope Scope) Filter {
	switch scope {
	case ScopeAll:
		return Unrestricted()
	case ScopeSelf:
		return Filter{Relation: RelationSelf, UserID: p.UserID}
	case ScopeScoped:
		if rel, ok := scopedRelations[scopedKey{p.Role, resource}]; ok {
			return Filter{Relation: rel, UserID: p.UserID}
		}
	}
	return Filter{Relation: RelationNone}
}

// Ownership carries the user references of a record that filters match against.
// Repositories express filters in SQL; Ownership and Matches serve in-memory
// stores, chiefly the test doubles.
type Ownership struct {
	ManagerID *int64
	GuardID   *int64
	UserID    int64
}

// Matches evaluates the filter against a single record.
func (f Filter) Matches(o Ownership) bool {
	switch f.Relation {
	case RelationAny:
		return true
	case RelationManager:
		return o.ManagerID != nil && *o.ManagerID == f.UserID
	case RelationGuard:
		return o.GuardID != nil && *o.GuardID == f.UserID
	case RelationSelf:
		return o.UserID == f.UserID
	default:
		return false
	}
}

func (f Filter) String() string {
	if f.Relation == RelationAny || f.Relation == RelationNone {
		return f.Relation.String()
	}
	return fmt.Sprintf("%s=%d", f.Relation, f.UserID)
}
