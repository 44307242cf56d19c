// Package oci loads and persists the two JSON documents the runtime reads
// and writes: the bundle's config.json (OCI Runtime Specification v1.0.2)
// and the per-container state.json record.
package oci

import (
	"encoding/json"
	"os"
	"path/filepath"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/reno-project/reno/internal/ocierr"
)

// SpecVersion is the OCI Runtime Specification version this runtime
// understands (spec.md §3).
const SpecVersion = "1.0.2"

// ConfigFileName is the bundle file read by LoadConfig.
const ConfigFileName = "config.json"

// LoadConfig reads and parses <bundle>/config.json into an *specs.Spec.
// Only the fields enumerated in spec.md §6 are consumed downstream, but
// the full document is kept in memory so hooks and debugging tools can
// see the rest.
func LoadConfig(bundle string) (*specs.Spec, error) {
	path := filepath.Join(bundle, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ocierr.New(ocierr.ConfigError, err, "bundle %q has no config.json", bundle)
		}
		return nil, ocierr.New(ocierr.ConfigError, err, "reading %s", path)
	}

	var spec specs.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, ocierr.New(ocierr.ConfigError, err, "parsing %s", path)
	}
	if spec.Root == nil {
		return nil, ocierr.New(ocierr.ConfigError, nil, "%s: root is required", path)
	}
	return &spec, nil
}

// RootfsPath resolves root.path against the bundle directory, as
// config.json permits a relative path there.
func RootfsPath(bundle string, spec *specs.Spec) string {
	root := spec.Root.Path
	if filepath.IsAbs(root) {
		return root
	}
	return filepath.Join(bundle, root)
}
