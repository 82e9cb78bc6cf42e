package rbac

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"

	ScopeAll = "all"
	ScopeOwn = "own"

	TypeLesson = "lesson"

	allPermissions = "*"
)

// Permission grants Action on resources of Type within Scope.
type Permission struct {
	Type   string
	Action string
	Scope  string
}

func Lesson(action string) Permission {
	return Permission{Type: TypeLesson, Action: action, Scope: ScopeAll}
}

// ParsePermission parses "type:action[:scope]"; the scope defaults to "all".
func ParsePermission(s string) (Permission, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Permission{}, fmt.Errorf("invalid permission %q: want type:action[:scope]", s)
	}
	p := Permission{Type: parts[0], Action: parts[1], Scope: ScopeAll}
	if len(parts) == 3 {
		p.Scope = parts[2]
	}
	if p.Type == "" {
		return Permission{}, fmt.Errorf("invalid permission %q: empty type", s)
	}
	if p.Action != ActionRead && p.Action != ActionWrite {
		return Permission{}, fmt.Errorf("invalid permission %q: unknown action %q", s, p.Action)
	}
	if p.Scope != ScopeAll && p.Scope != ScopeOwn {
		return Permission{}, fmt.Errorf("invalid permission %q: unknown scope %q", s, p.Scope)
	}
	return p, nil
}

func (p Permission) String() string {
	return p.Type + ":" + p.Action + ":" + p.Scope
}

func (p *Permission) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParsePermission(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Permission) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

type (
	// Seed is the declarative set of permissions and role groups to provision.
	Seed struct {
		Permissions []Permission `yaml:"permissions"`
		Groups      []SeedGroup  `yaml:"groups"`
	}

	SeedGroup struct {
		Name string `yaml:"name"`
		// Permissions lists "type:action[:scope]" triples, or "*" for every seeded permission.
		Permissions []string `yaml:"permissions"`
		Users       []int    `yaml:"users"`
	}
)

// ParseSeed decodes a YAML seed and checks that every group permission is declared.
func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("decoding seed: %w", err)
	}
	for _, g := range seed.Groups {
		if strings.TrimSpace(g.Name) == "" {
			return Seed{}, fmt.Errorf("seed group without a name")
		}
		if _, err := seed.groupPermissions(g); err != nil {
			return Seed{}, err
		}
	}
	return seed, nil
}

func (s Seed) groupPermissions(g SeedGroup) ([]Permission, error) {
	declared := make(map[Permission]bool, len(s.Permissions))
	for _, p := range s.Permissions {
		declared[p] = true
	}

	perms := make([]Permission, 0, len(g.Permissions))
	for _, raw := range g.Permissions {
		if strings.TrimSpace(raw) == allPermissions {
			return append([]Permission(nil), s.Permissions...), nil
		}
		p, err := ParsePermission(raw)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		if !declared[p] {
			return nil, fmt.Errorf("group %q: permission %s is not declared", g.Name, p)
		}
		perms = append(perms, p)
	}
	return perms, nil
}
