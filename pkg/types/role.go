package types

// RoleConfig names a class of caller and the logical databases it needs.
// Required databases must open for the role to activate; optional ones are
// opened best-effort.
type RoleConfig struct {
	RoleName          string   `json:"role_name" yaml:"role_name"`
	RequiredDatabases []string `json:"required_databases" yaml:"required_databases"`
	OptionalDatabases []string `json:"optional_databases,omitempty" yaml:"optional_databases,omitempty"`
	Priority          int      `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Databases returns required then optional database names with duplicates
// removed, preserving first occurrence order.
func (r RoleConfig) Databases() []string {
	seen := make(map[string]bool, len(r.RequiredDatabases)+len(r.OptionalDatabases))
	var out []string
	for _, list := range [][]string{r.RequiredDatabases, r.OptionalDatabases} {
		for _, name := range list {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
