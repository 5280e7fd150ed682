// Package manifest reads widget manifests.
//
// A manifest is a small YAML document:
//
//	id: org.example.player
//	name: Player
//	version: 1.0.0
//	trusted: false
//	start: main.js
//	privileges:
//	  - http://tizen.org/privilege/mediakey
package manifest

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"slices"

	"github.com/wrtplugins/wrt/internal/access"
	"gopkg.in/yaml.v3"
)

// Manifest describes one widget.
type Manifest struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	Version    string   `yaml:"version"`
	Trusted    bool     `yaml:"trusted"`
	Start      string   `yaml:"start"`
	Privileges []string `yaml:"privileges"`

	// Dir is the directory the manifest was loaded from. Start is resolved
	// against it.
	Dir string `yaml:"-"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Dir = filepath.Dir(path)
	return m, nil
}

// Parse decodes and validates a manifest. Unknown keys are rejected.
func Parse(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty manifest")
		}
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks required fields and privilege URIs.
func (m *Manifest) Validate() error {
	var errs []error
	if m.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	for _, p := range m.Privileges {
		u, err := url.Parse(p)
		if err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("privilege %q is not an absolute URI", p))
		}
	}
	return errors.Join(errs...)
}

// Declares reports whether the manifest lists privilege.
func (m *Manifest) Declares(privilege string) bool {
	return slices.Contains(m.Privileges, privilege)
}

// StartPath returns the start script path, or "" when none is set.
func (m *Manifest) StartPath() string {
	if m.Start == "" {
		return ""
	}
	if filepath.IsAbs(m.Start) {
		return m.Start
	}
	return filepath.Join(m.Dir, m.Start)
}

// App returns the access-check subject for this manifest.
func (m *Manifest) App() access.App {
	return access.App{
		ID:         m.ID,
		Name:       m.Name,
		Version:    m.Version,
		Trusted:    m.Trusted,
		Privileges: slices.Clone(m.Privileges),
	}
}
