// Package linux implements the kernel-facing primitives of the runtime:
// namespace/clone flag mapping, the mount and device engines, capability
// and rlimit/sysctl/hostname/oom_score_adj application. Every function
// here runs either in the CLI process (flag computation) or inside the
// cloned child (the actual privileged syscalls).
package linux

import (
	"fmt"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"

	"github.com/reno-project/reno/internal/ocierr"
)

// namespaceFlags maps an OCI namespace kind to its clone(2)/unshare(2)/
// setns(2) flag, per spec.md §4.2.
var namespaceFlags = map[specs.LinuxNamespaceType]uintptr{
	specs.MountNamespace:   unix.CLONE_NEWNS,
	specs.CgroupNamespace:  unix.CLONE_NEWCGROUP,
	specs.UTSNamespace:     unix.CLONE_NEWUTS,
	specs.IPCNamespace:     unix.CLONE_NEWIPC,
	specs.UserNamespace:    unix.CLONE_NEWUSER,
	specs.PIDNamespace:     unix.CLONE_NEWPID,
	specs.NetworkNamespace: unix.CLONE_NEWNET,
}

// CloneFlags computes the clone flag word for every namespace entry whose
// Path is empty. Namespaces with a non-empty Path are joined later, in
// the child, via JoinNamespaces.
func CloneFlags(namespaces []specs.LinuxNamespace) (uintptr, error) {
	var flags uintptr
	for _, ns := range namespaces {
		if ns.Path != "" {
			continue
		}
		flag, ok := namespaceFlags[ns.Type]
		if !ok {
			return 0, ocierr.New(ocierr.NamespaceError, nil, "unknown namespace type %q", ns.Type)
		}
		flags |= flag
	}
	return flags, nil
}

// JoinNamespaces calls setns(2) for every namespace entry with a non-empty
// Path, in the order given. Must run in the child, before any mount work
// (spec.md §4.3).
func JoinNamespaces(namespaces []specs.LinuxNamespace) error {
	for _, ns := range namespaces {
		if ns.Path == "" {
			continue
		}
		flag, ok := namespaceFlags[ns.Type]
		if !ok {
			return ocierr.New(ocierr.NamespaceError, nil, "unknown namespace type %q", ns.Type)
		}
		fd, err := unix.Open(ns.Path, unix.O_RDONLY, 0)
		if err != nil {
			return ocierr.New(ocierr.NamespaceError, err, "opening namespace path %s", ns.Path)
		}
		err = unix.Setns(fd, int(flag))
		_ = unix.Close(fd)
		if err != nil {
			return ocierr.New(ocierr.NamespaceError, err, "setns(%s, %s)", ns.Path, ns.Type)
		}
	}
	return nil
}

// ValidateUnique rejects an OCI spec that lists the same namespace kind
// twice, which libcontainer's own config validation also rejects.
func ValidateUnique(namespaces []specs.LinuxNamespace) error {
	seen := make(map[specs.LinuxNamespaceType]bool, len(namespaces))
	for _, ns := range namespaces {
		if seen[ns.Type] {
			return ocierr.New(ocierr.NamespaceError, nil, "duplicate namespace %q", ns.Type)
		}
		seen[ns.Type] = true
	}
	return nil
}

// String helper for log messages.
func flagsString(flags uintptr) string {
	return fmt.Sprintf("0x%x", flags)
}
