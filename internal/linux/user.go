package linux

import (
	"golang.org/x/sys/unix"

	"github.com/reno-project/reno/internal/ocierr"
)

// SetKeepCaps toggles PR_SET_KEEPCAPS. Setting it true before setuid(2)
// to a non-zero UID suppresses the kernel's usual drop of the permitted
// capability set, so the capability engine's subsequent writes still
// take effect; it must be cleared again right after (spec.md §4.10 step
// 8, §9 "Privilege-drop ordering").
func SetKeepCaps(keep bool) error {
	var val uintptr
	if keep {
		val = 1
	}
	if err := unix.Prctl(unix.PR_SET_KEEPCAPS, val, 0, 0, 0); err != nil {
		return ocierr.New(ocierr.CapabilityError, err, "prctl(PR_SET_KEEPCAPS, %d)", val)
	}
	return nil
}

// SetUmask applies process.user.umask inside the child.
func SetUmask(umask *uint32) {
	if umask == nil {
		return
	}
	unix.Umask(int(*umask))
}

// SetGroups calls setgroups(2) with the additional gids (must run before
// setuid, while still privileged enough to change group membership).
func SetGroups(gids []uint32) error {
	if len(gids) == 0 {
		return nil
	}
	ids := make([]int, len(gids))
	for i, g := range gids {
		ids[i] = int(g)
	}
	if err := unix.Setgroups(ids); err != nil {
		return ocierr.New(ocierr.CapabilityError, err, "setgroups(%v)", gids)
	}
	return nil
}

// SetGid calls setgid(2).
func SetGid(gid uint32) error {
	if err := unix.Setgid(int(gid)); err != nil {
		return ocierr.New(ocierr.CapabilityError, err, "setgid(%d)", gid)
	}
	return nil
}

// SetUid calls setuid(2).
func SetUid(uid uint32) error {
	if err := unix.Setuid(int(uid)); err != nil {
		return ocierr.New(ocierr.CapabilityError, err, "setuid(%d)", uid)
	}
	return nil
}
