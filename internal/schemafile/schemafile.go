// Package schemafile loads schema and role definitions from disk.
//
// A schema file holds one DatabaseSchema as YAML or JSON. A directory of
// schema files may also hold roles.yaml, which lists role configurations.
package schemafile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

// RolesFile is the file name LoadDir reads role definitions from.
const RolesFile = "roles.yaml"

var extensions = []string{".yaml", ".yml", ".json"}

func isSchemaFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads one schema file. A schema without database_name takes the
// file's base name. The schema is validated before it is returned.
func Load(path string) (*types.DatabaseSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}

	var schema types.DatabaseSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, types.NewConfigurationError("load_schema", path, "parse failed",
			fmt.Errorf("%w: %w", types.ErrInvalidSchema, err))
	}
	if schema.DatabaseName == "" {
		base := filepath.Base(path)
		schema.DatabaseName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	for name, t := range schema.Schemas {
		if t.Name == "" {
			t.Name = name
			schema.Schemas[name] = t
		}
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &schema, nil
}

// LoadDir reads every schema file in dir, keyed by database name. Two
// files declaring the same database name are an error.
func LoadDir(dir string) (map[string]*types.DatabaseSchema, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading schema dir %s: %w", dir, err)
	}

	out := make(map[string]*types.DatabaseSchema)
	from := make(map[string]string)
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || name == RolesFile || !isSchemaFile(name) {
			continue
		}
		path := filepath.Join(dir, name)
		schema, err := Load(path)
		if err != nil {
			return nil, err
		}
		if prev, dup := from[schema.DatabaseName]; dup {
			return nil, types.NewConfigurationError("load_schema_dir", schema.DatabaseName,
				fmt.Sprintf("declared by both %s and %s", prev, name), types.ErrInvalidSchema)
		}
		from[schema.DatabaseName] = name
		out[schema.DatabaseName] = schema
	}
	return out, nil
}

type rolesDoc struct {
	Roles []types.RoleConfig `yaml:"roles"`
}

// LoadRoles reads a roles file. A missing file yields no roles.
func LoadRoles(path string) ([]types.RoleConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading roles %s: %w", path, err)
	}

	var doc rolesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, types.NewConfigurationError("load_roles", path, "parse failed", err)
	}
	for _, r := range doc.Roles {
		if r.RoleName == "" {
			return nil, types.NewConfigurationError("load_roles", path, "role without role_name", types.ErrInvalidIdentifier)
		}
	}
	sort.SliceStable(doc.Roles, func(i, j int) bool { return doc.Roles[i].Priority > doc.Roles[j].Priority })
	return doc.Roles, nil
}

// Provider serves schemas from a directory on demand. It looks for
// <name>.yaml, <name>.yml and <name>.json in that order.
type Provider struct {
	dir string
}

// NewProvider returns a provider over dir.
func NewProvider(dir string) *Provider {
	return &Provider{dir: dir}
}

// Schema implements registry.SchemaProvider.
func (p *Provider) Schema(name string) (*types.DatabaseSchema, bool, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, false, nil
	}
	for _, ext := range extensions {
		path := filepath.Join(p.dir, name+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		schema, err := Load(path)
		if err != nil {
			return nil, false, err
		}
		return schema, true, nil
	}
	return nil, false, nil
}
