package linux

import (
	"os"
	"strings"

	"github.com/reno-project/reno/internal/ocierr"
)

// SetSysctl writes each key->value pair to /proc/sys/<key-with-dots-as-slashes>
// (spec.md §4.7). Must run after the mount namespace and rootfs are set
// up, inside the container's own /proc.
func SetSysctl(params map[string]string) error {
	for key, value := range params {
		path := "/proc/sys/" + strings.ReplaceAll(key, ".", "/")
		if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
			return ocierr.New(ocierr.SysctlError, err, "writing %s=%s", key, value)
		}
	}
	return nil
}
