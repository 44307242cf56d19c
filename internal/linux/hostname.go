package linux

import (
	"golang.org/x/sys/unix"

	"github.com/reno-project/reno/internal/ocierr"
)

// SetHostname calls sethostname(2); requires a UTS namespace (spec.md §4.7).
func SetHostname(hostname string) error {
	if hostname == "" {
		return nil
	}
	if err := unix.Sethostname([]byte(hostname)); err != nil {
		return ocierr.New(ocierr.HostnameError, err, "sethostname(%q)", hostname)
	}
	return nil
}
