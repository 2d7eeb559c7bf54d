// SPDX-License-Identifier: MPL-2.0

package scriptstore

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Export renders a script as a YAML document.
func Export(sc Script) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(sc); err != nil {
		return nil, fmt.Errorf("failed to encode script %s: %w", sc.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Import reads a script from a file's contents. Files ending in .yaml or .yml
// must hold an exported document; anything else is taken as raw code. name
// overrides the stored or derived name when non-empty.
func Import(path string, data []byte, name string) (Script, error) {
	var sc Script
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return Script{}, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		if sc.Code == "" {
			return Script{}, fmt.Errorf("%s: document has no code", path)
		}
	default:
		sc.Code = string(data)
		sc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if name != "" {
		sc.Name = name
	}
	if err := ValidateName(sc.Name); err != nil {
		return Script{}, err
	}
	return sc, nil
}
