package linux

import (
	"os"

	securejoin "github.com/cyphar/filepath-securejoin"
	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"

	"github.com/reno-project/reno/internal/ocierr"
)

// defaultDevice is one entry of the mandated device set (spec.md §4.5).
type defaultDevice struct {
	path        string
	major, minor int64
}

var defaultDevices = []defaultDevice{
	{"/dev/null", 1, 3},
	{"/dev/zero", 1, 5},
	{"/dev/full", 1, 7},
	{"/dev/random", 1, 8},
	{"/dev/urandom", 1, 9},
	{"/dev/tty", 5, 0},
}

// defaultSymlinks is the mandated set of /dev/* symlinks, source -> target
// both relative to rootfs (spec.md §4.5).
var defaultSymlinks = [][2]string{
	{"/proc/self/fd", "/dev/fd"},
	{"/proc/self/fd/0", "/dev/stdin"},
	{"/proc/self/fd/1", "/dev/stdout"},
	{"/proc/self/fd/2", "/dev/stderr"},
	{"pts/ptmx", "/dev/ptmx"},
}

func deviceMode(t string) (uint32, bool) {
	switch t {
	case "c", "u":
		return unix.S_IFCHR, true
	case "b":
		return unix.S_IFBLK, true
	case "p":
		return unix.S_IFIFO, true
	case "a":
		return 0, false
	default:
		return 0, false
	}
}

// CreateDevices mknods every config-supplied device, then the mandated
// default device set, then the default symlinks, all resolved under
// rootfs via a secure join (spec.md §4.5).
func CreateDevices(rootfs string, devices []specs.LinuxDevice) error {
	for _, d := range devices {
		if err := createConfigDevice(rootfs, d); err != nil {
			return err
		}
	}
	if err := createDefaultDevices(rootfs); err != nil {
		return err
	}
	return createDefaultSymlinks(rootfs)
}

func createConfigDevice(rootfs string, d specs.LinuxDevice) error {
	sflag, ok := deviceMode(d.Type)
	if !ok && d.Type != "a" {
		return ocierr.New(ocierr.DeviceError, nil, "unknown device type %q for %s", d.Type, d.Path)
	}
	if d.Type == "a" {
		return nil
	}

	path, err := securejoin.SecureJoin(rootfs, d.Path)
	if err != nil {
		return ocierr.New(ocierr.DeviceError, err, "resolving device path %s", d.Path)
	}

	perm := uint32(0o666)
	if d.FileMode != nil {
		perm = uint32(*d.FileMode) & 0o7777
	}
	dev := unix.Mkdev(uint32(d.Major), uint32(d.Minor))
	if err := unix.Mknod(path, sflag|perm, int(dev)); err != nil {
		return ocierr.New(ocierr.DeviceError, err, "mknod %s", path)
	}
	// mknod's mode is subject to the process umask, so the permission
	// bits above may not have taken effect; chmod to the exact value.
	if err := os.Chmod(path, os.FileMode(perm)); err != nil {
		return ocierr.New(ocierr.DeviceError, err, "chmod %s", path)
	}
	if d.UID != nil || d.GID != nil {
		uid, gid := -1, -1
		if d.UID != nil {
			uid = int(*d.UID)
		}
		if d.GID != nil {
			gid = int(*d.GID)
		}
		if err := os.Chown(path, uid, gid); err != nil {
			return ocierr.New(ocierr.DeviceError, err, "chown %s", path)
		}
	}
	return nil
}

func createDefaultDevices(rootfs string) error {
	for _, d := range defaultDevices {
		path, err := securejoin.SecureJoin(rootfs, d.path)
		if err != nil {
			return ocierr.New(ocierr.DeviceError, err, "resolving default device path %s", d.path)
		}
		dev := unix.Mkdev(uint32(d.major), uint32(d.minor))
		if err := unix.Mknod(path, unix.S_IFCHR|0o666, int(dev)); err != nil {
			return ocierr.New(ocierr.DeviceError, err, "mknod default device %s", path)
		}
		if err := os.Chmod(path, 0o666); err != nil {
			return ocierr.New(ocierr.DeviceError, err, "chmod default device %s", path)
		}
		if err := os.Chown(path, 0, 0); err != nil {
			return ocierr.New(ocierr.DeviceError, err, "chown default device %s", path)
		}
	}
	return nil
}

func createDefaultSymlinks(rootfs string) error {
	for _, sl := range defaultSymlinks {
		target, err := securejoin.SecureJoin(rootfs, sl[1])
		if err != nil {
			return ocierr.New(ocierr.DeviceError, err, "resolving symlink target %s", sl[1])
		}
		if err := os.Symlink(sl[0], target); err != nil && !os.IsExist(err) {
			return ocierr.New(ocierr.DeviceError, err, "symlink %s -> %s", sl[0], target)
		}
	}
	return nil
}
