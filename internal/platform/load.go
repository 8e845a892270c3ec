package platform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML description. Fields the document omits keep
// their Jazz values, so a file only states what differs from the
// baseline target.
func Parse(data []byte) (Description, error) {
	d := Jazz()

	// A document's line remap replaces the baseline's rather than
	// merging into it, so drop the default when the key is present.
	var doc struct {
		Remap *map[uint32]uint32 `yaml:"eisaLineRemap"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Description{}, fmt.Errorf("parse platform: %w", err)
	}
	if doc.Remap != nil {
		d.EisaLineRemap = nil
	}

	if err := yaml.Unmarshal(data, &d); err != nil {
		return Description{}, fmt.Errorf("parse platform: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Description{}, err
	}
	return d, nil
}

// Load reads a YAML description from path.
func Load(path string) (Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Description{}, fmt.Errorf("read %s: %w", path, err)
	}
	d, err := Parse(data)
	if err != nil {
		return Description{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// WriteFile writes a description to path as YAML.
func WriteFile(path string, d Description) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&d); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
