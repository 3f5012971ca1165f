package interview

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Interviews []Interview `yaml:"interviews"`
}

// LoadCatalog reads seed interviews from a YAML file.
func LoadCatalog(filename string) ([]Interview, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", filename, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(data []byte) ([]Interview, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Interviews))
	for i, item := range file.Interviews {
		if strings.TrimSpace(item.ID) == "" {
			return nil, fmt.Errorf("interview %d must have id", i)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("duplicate interview id %q", item.ID)
		}
		seen[item.ID] = struct{}{}

		if strings.TrimSpace(item.Role) == "" {
			return nil, fmt.Errorf("interview %s must have role", item.ID)
		}
		if strings.TrimSpace(item.Type) == "" {
			return nil, fmt.Errorf("interview %s must have type", item.ID)
		}
	}
	return file.Interviews, nil
}
