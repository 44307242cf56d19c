package oci

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/reno-project/reno/internal/ocierr"
)

// StateFileName is the per-container record written under <root>/<id>/.
const StateFileName = "state.json"

// ContainerState is the full persisted record for a container: the
// OCI-visible State plus bookkeeping the runtime needs between
// invocations but that "state" does not print.
type ContainerState struct {
	specs.State

	// Created is when the container directory was first written.
	Created time.Time `json:"created"`

	// Rootfs is the resolved (bundle-relative made absolute) rootfs path.
	Rootfs string `json:"rootfs"`
}

// LoadState reads <root>/<id>/state.json.
func LoadState(root, id string) (*ContainerState, error) {
	path := filepath.Join(root, id, StateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ocierr.New(ocierr.ConfigError, err, "container %q does not exist", id)
		}
		return nil, ocierr.New(ocierr.ConfigError, err, "reading state for %q", id)
	}
	var s ContainerState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, ocierr.New(ocierr.ConfigError, err, "parsing state for %q", id)
	}
	return &s, nil
}

// Save persists the state via a temp-file-then-rename so a crash mid-write
// never leaves a truncated state.json behind.
func (s *ContainerState) Save(root, id string) error {
	dir := filepath.Join(root, id)
	path := filepath.Join(dir, StateFileName)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return ocierr.New(ocierr.ConfigError, err, "marshaling state for %q", id)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return ocierr.New(ocierr.ConfigError, err, "creating temp state file for %q", id)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ocierr.New(ocierr.ConfigError, err, "writing temp state file for %q", id)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ocierr.New(ocierr.ConfigError, err, "syncing temp state file for %q", id)
	}
	if err := tmp.Close(); err != nil {
		return ocierr.New(ocierr.ConfigError, err, "closing temp state file for %q", id)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return ocierr.New(ocierr.ConfigError, err, "chmod temp state file for %q", id)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return ocierr.New(ocierr.ConfigError, err, "renaming state file for %q", id)
	}

	success = true
	return nil
}

// Dir returns <root>/<id>.
func Dir(root, id string) string {
	return filepath.Join(root, id)
}

// Exists reports whether a container directory already exists for id.
func Exists(root, id string) bool {
	_, err := os.Stat(Dir(root, id))
	return err == nil
}
