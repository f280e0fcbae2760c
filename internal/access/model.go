package access

import "fmt"

// Resource is a protected resource type.
type Resource string

const (
	ResourceBuilding  Resource = "building"
	ResourceEntrance  Resource = "entrance"
	ResourceApartment Resource = "apartment"
	ResourceStaff     Resource = "staff"
	ResourceAudit     Resource = "audit"
)

// Resources lists every resource type the capability table knows about.
func Resources() []Resource {
	return []Resource{ResourceBuilding, ResourceEntrance, ResourceApartment, ResourceStaff, ResourceAudit}
}

// Action is an operation on a resource type.
type Action string

const (
	ActionList     Action = "list"
	ActionRetrieve Action = "retrieve"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
)

// Actions lists every action in a stable order.
func Actions() []Action {
	return []Action{ActionList, ActionRetrieve, ActionCreate, ActionUpdate, ActionDelete}
}

// Scope narrows an allowed operation to a subset of records.
type Scope string

const (
	ScopeAll    Scope = "all"
	ScopeScoped Scope = "scoped"
	ScopeSelf   Scope = "self"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID   int64
	Username string
	Role     Role
}

// Rule is one row of the capability table.
type Rule struct {
	Role     Role     `json:"role" yaml:"role"`
	Resource Resource `json:"resource" yaml:"resource"`
	Action   Action   `json:"action" yaml:"action"`
	Scope    Scope    `json:"scope" yaml:"scope"`
}

// Decision is the outcome of a capability lookup.
type Decision struct {
	Allowed bool
	Scope   Scope
}

func parseResource(s string) (Resource, error) {
	for _, r := range Resources() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownResource, s)
}

func parseAction(s string) (Action, error) {
	for _, a := range Actions() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

func parseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeAll, ScopeScoped, ScopeSelf:
		return Scope(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScope, s)
}
