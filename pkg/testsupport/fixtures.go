package testsupport

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML decodes the YAML document at path into v.
func LoadYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}
