package pkgset

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed groups.yaml
var defaultManifest []byte

// Store maps group keys to ordered package lists. Ordering within a
// group is irrelevant to installation but preserved for reproducible
// logs.
type Store struct {
	groups map[GroupKey][]string
}

type manifest struct {
	Groups map[string][]string `yaml:"groups"`
}

// LoadStore reads a group manifest from path, or the embedded default
// manifest when path is empty.
func LoadStore(path string) (*Store, error) {
	data := defaultManifest
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read group manifest: %w", err)
		}
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse group manifest: %w", err)
	}
	groups := make(map[GroupKey][]string, len(m.Groups))
	for key, pkgs := range m.Groups {
		groups[GroupKey(key)] = pkgs
	}
	return &Store{groups: groups}, nil
}

// Packages returns the package list for a group key. A key with no
// backing list is a resolution gap: the second return is false and the
// caller reports a warning and continues.
func (s *Store) Packages(key GroupKey) ([]string, bool) {
	pkgs, ok := s.groups[key]
	if !ok || len(pkgs) == 0 {
		return nil, false
	}
	return pkgs, true
}

// Expand flattens group keys into one ordered package list, collecting
// the keys that had no backing group.
func (s *Store) Expand(keys []GroupKey) (pkgs []string, missing []GroupKey) {
	for _, key := range keys {
		list, ok := s.Packages(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		pkgs = append(pkgs, list...)
	}
	return pkgs, missing
}
