package permissions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charlesng35/adminhub/pkg/validator"
)

// Definition describes a permission shipped with the default catalog. The
// database row is authoritative once seeded; definitions only fill gaps.
type Definition struct {
	Name        string
	DisplayName string
	Description string
	Group       string
}

// RoleDefinition describes a role seeded on first start.
type RoleDefinition struct {
	Name        string
	DisplayName string
	Description string
	System      bool
	// AllPermissions grants every catalog permission to the role when it is created.
	AllPermissions bool
	Permissions    []string
}

type catalog struct {
	mu          sync.RWMutex
	permissions map[string]*Definition
	roles       map[string]*RoleDefinition
}

var globalCatalog = &catalog{
	permissions: make(map[string]*Definition),
	roles:       make(map[string]*RoleDefinition),
}

var (
	errNilDefinition = errors.New("permission: nil definition")
	errInvalidName   = errors.New("permission: name must be a lowercase token")
	errDuplicateName = errors.New("permission: already registered")
)

// Register adds a permission definition to the default catalog.
func Register(def *Definition) error {
	if def == nil {
		return errNilDefinition
	}

	cp := *def
	cp.Name = strings.TrimSpace(cp.Name)
	if !validator.IsToken(cp.Name) {
		return fmt.Errorf("%w: %q", errInvalidName, cp.Name)
	}
	cp.Group = strings.TrimSpace(cp.Group)

	globalCatalog.mu.Lock()
	defer globalCatalog.mu.Unlock()

	if _, exists := globalCatalog.permissions[cp.Name]; exists {
		return fmt.Errorf("%w: %s", errDuplicateName, cp.Name)
	}
	globalCatalog.permissions[cp.Name] = &cp
	return nil
}

// RegisterRole adds a default role to the catalog. Permissions must already be registered.
func RegisterRole(def *RoleDefinition) error {
	if def == nil {
		return errNilDefinition
	}

	cp := *def
	cp.Name = strings.TrimSpace(cp.Name)
	if !validator.IsToken(cp.Name) {
		return fmt.Errorf("%w: %q", errInvalidName, cp.Name)
	}
	cp.Permissions = append([]string(nil), def.Permissions...)

	globalCatalog.mu.Lock()
	defer globalCatalog.mu.Unlock()

	for _, name := range cp.Permissions {
		if _, ok := globalCatalog.permissions[name]; !ok {
			return fmt.Errorf("permission: role %s references unknown permission %s", cp.Name, name)
		}
	}
	if _, exists := globalCatalog.roles[cp.Name]; exists {
		return fmt.Errorf("%w: role %s", errDuplicateName, cp.Name)
	}
	globalCatalog.roles[cp.Name] = &cp
	return nil
}

// Get returns a copy of the permission definition when registered.
func Get(name string) (*Definition, bool) {
	globalCatalog.mu.RLock()
	defer globalCatalog.mu.RUnlock()

	def, ok := globalCatalog.permissions[name]
	if !ok {
		return nil, false
	}
	cp := *def
	return &cp, true
}

// All returns the registered permission definitions sorted by group then name.
func All() []Definition {
	globalCatalog.mu.RLock()
	defer globalCatalog.mu.RUnlock()

	out := make([]Definition, 0, len(globalCatalog.permissions))
	for _, def := range globalCatalog.permissions {
		out = append(out, *def)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Roles returns the registered default roles sorted by name.
func Roles() []RoleDefinition {
	globalCatalog.mu.RLock()
	defer globalCatalog.mu.RUnlock()

	out := make([]RoleDefinition, 0, len(globalCatalog.roles))
	for _, def := range globalCatalog.roles {
		cp := *def
		cp.Permissions = append([]string(nil), def.Permissions...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func removePermission(name string) {
	globalCatalog.mu.Lock()
	defer globalCatalog.mu.Unlock()
	delete(globalCatalog.permissions, name)
}
