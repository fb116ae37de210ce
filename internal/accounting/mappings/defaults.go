package mappings

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var embeddedDefaults []byte

// Defaults is the role fallback table applied when neither a tenant mapping nor a
// caller fallback exists.
type Defaults struct {
	Roles map[Role]string `yaml:"roles"`
}

// Lookup returns the default code for role.
func (d Defaults) Lookup(role Role) (string, bool) {
	code, ok := d.Roles[role]
	return code, ok && code != ""
}

// LoadDefaults reads the table from path, or the embedded table when path is empty.
func LoadDefaults(path string) (Defaults, error) {
	raw := embeddedDefaults
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Defaults{}, fmt.Errorf("mappings: read defaults: %w", err)
		}
		raw = data
	}
	var d Defaults
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Defaults{}, fmt.Errorf("mappings: parse defaults: %w", err)
	}
	if d.Roles == nil {
		d.Roles = map[Role]string{}
	}
	return d, nil
}
