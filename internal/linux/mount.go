package linux

import (
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/moby/sys/mountinfo"
	"github.com/mrunalp/fileutils"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/reno-project/reno/internal/ocierr"
)

// ResetPropagation remounts / with MS_PRIVATE|MS_REC so none of the
// mount events the child is about to generate propagate back out to the
// host's mount namespace (spec.md §4.4 step 1, first half).
func ResetPropagation() error {
	if err := unix.Mount("", "/", "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return ocierr.New(ocierr.MountError, err, "remounting / private")
	}
	return nil
}

// BindRootfs bind-mounts rootfs onto itself so the new mount namespace
// owns its own mount entry for it (spec.md §4.4 step 1, second half). If
// rootfs is already a mount point, the bind is skipped: a repeated "reno
// init" retry after a crash must not double bind-mount the same path.
func BindRootfs(rootfs string) error {
	mounted, err := IsMountPoint(rootfs)
	if err != nil {
		return err
	}
	if mounted {
		logrus.Debugf("reno: %s is already a mount point, skipping bind", rootfs)
		return nil
	}
	if err := unix.Mount(rootfs, rootfs, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return ocierr.New(ocierr.MountError, err, "bind-mounting rootfs %s", rootfs)
	}
	return nil
}

// IsMountPoint reports whether path is already a mount point, consulting
// /proc/self/mountinfo.
func IsMountPoint(path string) (bool, error) {
	mounted, err := mountinfo.Mounted(path)
	if err != nil {
		return false, ocierr.New(ocierr.MountError, err, "checking mount point %s", path)
	}
	return mounted, nil
}

// ApplyMounts creates each destination under rootfs (if absent) and
// performs the mount(2) call with the translated flags (spec.md §4.4
// step 2). A bind mount whose source is a regular file gets a file
// destination instead of a directory, matching what mount(2) requires.
func ApplyMounts(rootfs string, mounts []specs.Mount) error {
	for _, m := range mounts {
		dest, err := securejoin.SecureJoin(rootfs, m.Destination)
		if err != nil {
			return ocierr.New(ocierr.MountError, err, "resolving destination %s", m.Destination)
		}

		if err := fileutils.CreateIfNotExists(dest, destIsDir(m)); err != nil {
			return ocierr.New(ocierr.MountError, err, "creating mount destination %s", dest)
		}

		flags, data := ParseMountOptions(m.Options)

		source := m.Source
		logrus.Debugf("reno: mounting %s -> %s (type=%s flags=%s data=%q)", source, dest, m.Type, flagsString(flags), data)

		if err := unix.Mount(source, dest, m.Type, flags, data); err != nil {
			return ocierr.New(ocierr.MountError, err, "mounting %s -> %s", source, dest)
		}
	}
	return nil
}

// destIsDir reports whether m's destination should be created as a
// directory. Non-bind mounts (tmpfs, proc, sysfs, ...) always target a
// directory; a bind mount follows its source: a regular file bind-mounts
// onto a regular file destination, anything else (including a source
// that can't be stat'd yet, e.g. not present on the host) defaults to a
// directory.
func destIsDir(m specs.Mount) bool {
	isBind := m.Type == "bind"
	for _, opt := range m.Options {
		if opt == "bind" || opt == "rbind" {
			isBind = true
		}
	}
	if !isBind {
		return true
	}
	info, err := os.Stat(m.Source)
	if err != nil {
		return true
	}
	return info.IsDir()
}

// rootArchiveName is the directory pivot_root moves the old root under,
// created and removed inside rootfs for the duration of the pivot.
const rootArchiveName = "root_archive"

// PivotRootfs implements spec.md §4.4 step 3: chdir into rootfs, pivot,
// chdir to the new /, then detach and remove the old root. The chdir
// comes before the detach so that the archive is addressed through the
// new root rather than from inside the old root being detached. If
// readonly is set the new rootfs is remounted read-only as the final step.
func PivotRootfs(rootfs string, readonly bool) (retErr error) {
	if err := unix.Chdir(rootfs); err != nil {
		return ocierr.New(ocierr.MountError, err, "chdir %s", rootfs)
	}

	archive := filepath.Join(rootfs, rootArchiveName)
	if err := os.Mkdir(archive, 0o700); err != nil && !os.IsExist(err) {
		return ocierr.New(ocierr.MountError, err, "creating %s", archive)
	}
	// If anything below fails, don't leave an empty root_archive directory
	// lying around inside the new root (spec.md §9 open question (b)).
	defer func() {
		if retErr != nil {
			_ = os.Remove(archive)
		}
	}()

	if err := unix.PivotRoot(rootfs, archive); err != nil {
		return ocierr.New(ocierr.MountError, err, "pivot_root %s -> %s", rootfs, archive)
	}
	// After the pivot the archive directory is reached through the new root.
	archive = "/" + rootArchiveName

	if err := unix.Chdir("/"); err != nil {
		return ocierr.New(ocierr.MountError, err, "chdir / after pivot")
	}

	archiveRel := "/" + rootArchiveName
	if err := unix.Unmount(archiveRel, unix.MNT_DETACH); err != nil {
		return ocierr.New(ocierr.MountError, err, "detaching old root at %s", archiveRel)
	}

	if err := os.Remove(archiveRel); err != nil {
		return ocierr.New(ocierr.MountError, err, "removing old root dir %s", archiveRel)
	}

	if readonly {
		if err := unix.Mount("", "/", "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY|unix.MS_REC, ""); err != nil {
			return ocierr.New(ocierr.MountError, err, "remounting new root read-only")
		}
	}

	return nil
}
