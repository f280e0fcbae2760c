package access

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// DecisionObserver is notified of every capability decision.
type DecisionObserver interface {
	ObserveDecision(role, resource, action string, allowed bool)
}

// Table is the capability table: a static mapping of (role, resource, action)
// to a scope. It is loaded once and never mutated afterwards.
type Table struct {
	enforcer *casbin.SyncedEnforcer
	rules    []Rule
	observer DecisionObserver
}

// NewTable builds the table from the embedded policy. observer may be nil.
func NewTable(observer DecisionObserver) (*Table, error) {
	return NewTableFromPolicy(embeddedPolicy, observer)
}

// NewTableFromPolicy builds a table from policy text in casbin CSV form
// (`p, role, resource, action, scope`).
func NewTableFromPolicy(policy string, observer DecisionObserver) (*Table, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load capability model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	rules, err := parsePolicy(policy)
	if err != nil {
		return nil, err
	}

	for _, r := range rules {
		if _, err := enforcer.AddPolicy(r.Role.String(), string(r.Resource), string(r.Action), string(r.Scope)); err != nil {
			return nil, fmt.Errorf("failed to add policy %v: %w", r, err)
		}
	}

	return &Table{
		enforcer: enforcer,
		rules:    rules,
		observer: observer,
	}, nil
}

func parsePolicy(policy string) ([]Rule, error) {
	var rules []Rule
	seen := make(map[string]bool)

	for n, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) != 5 || parts[0] != "p" {
			return nil, fmt.Errorf("%w: line %d: %q", ErrInvalidPolicy, n+1, line)
		}

		role, err := ParseRole(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidPolicy, n+1, err)
		}
		resource, err := parseResource(parts[2])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidPolicy, n+1, err)
		}
		action, err := parseAction(parts[3])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidPolicy, n+1, err)
		}
		scope, err := parseScope(parts[4])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidPolicy, n+1, err)
		}

		key := strings.Join(parts[1:4], "|")
		if seen[key] {
			return nil, fmt.Errorf("%w: line %d: duplicate rule for %s", ErrInvalidPolicy, n+1, key)
		}
		seen[key] = true

		rules = append(rules, Rule{Role: role, Resource: resource, Action: action, Scope: scope})
	}

	return rules, nil
}

// Decide looks up the capability for role on resource/action. Unknown roles
// and missing rows are denied.
func (t *Table) Decide(role Role, resource Resource, action Action) Decision {
	decision := t.decide(role, resource, action)
	if t.observer != nil {
		t.observer.ObserveDecision(role.String(), string(resource), string(action), decision.Allowed)
	}
	return decision
}

func (t *Table) decide(role Role, resource Resource, action Action) Decision {
	if !role.Valid() {
		return Decision{}
	}

	allowed, matched, err := t.enforcer.EnforceEx(role.String(), string(resource), string(action))
	if err != nil || !allowed || len(matched) < 4 {
		return Decision{}
	}

	scope, err := parseScope(matched[3])
	if err != nil {
		return Decision{}
	}

	return Decision{Allowed: true, Scope: scope}
}

// Rules returns a copy of the table rows, optionally restricted to one role.
// A zero role returns every row.
func (t *Table) Rules(role Role) []Rule {
	out := make([]Rule, 0, len(t.rules))
	for _, r := range t.rules {
		if role == 0 || r.Role == role {
			out = append(out, r)
		}
	}
	return out
}
