package linux

import (
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"

	"github.com/reno-project/reno/internal/ocierr"
)

// rlimitNames maps the 16 POSIX rlimit kinds to their kernel constants
// (spec.md §4.7).
var rlimitNames = map[string]int{
	"RLIMIT_CPU":        unix.RLIMIT_CPU,
	"RLIMIT_FSIZE":      unix.RLIMIT_FSIZE,
	"RLIMIT_DATA":       unix.RLIMIT_DATA,
	"RLIMIT_STACK":      unix.RLIMIT_STACK,
	"RLIMIT_CORE":       unix.RLIMIT_CORE,
	"RLIMIT_RSS":        unix.RLIMIT_RSS,
	"RLIMIT_NPROC":      unix.RLIMIT_NPROC,
	"RLIMIT_NOFILE":     unix.RLIMIT_NOFILE,
	"RLIMIT_MEMLOCK":    unix.RLIMIT_MEMLOCK,
	"RLIMIT_AS":         unix.RLIMIT_AS,
	"RLIMIT_LOCKS":      unix.RLIMIT_LOCKS,
	"RLIMIT_SIGPENDING": unix.RLIMIT_SIGPENDING,
	"RLIMIT_MSGQUEUE":   unix.RLIMIT_MSGQUEUE,
	"RLIMIT_NICE":       unix.RLIMIT_NICE,
	"RLIMIT_RTPRIO":     unix.RLIMIT_RTPRIO,
	"RLIMIT_RTTIME":     unix.RLIMIT_RTTIME,
}

// SetRlimits applies every process.rlimits[i] entry.
func SetRlimits(limits []specs.POSIXRlimit) error {
	for _, l := range limits {
		resource, ok := rlimitNames[l.Type]
		if !ok {
			return ocierr.New(ocierr.RlimitError, nil, "unknown rlimit type %q", l.Type)
		}
		rlim := unix.Rlimit{Cur: l.Soft, Max: l.Hard}
		if err := unix.Setrlimit(resource, &rlim); err != nil {
			return ocierr.New(ocierr.RlimitError, err, "setrlimit(%s, soft=%d, hard=%d)", l.Type, l.Soft, l.Hard)
		}
	}
	return nil
}
