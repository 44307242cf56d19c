package linux

import (
	"strings"

	"golang.org/x/sys/unix"
)

// mountOption is one entry of the glossary's "Mount option table": it
// either sets or clears a bit in the flag word, or, if unrecognised,
// becomes a data-string entry instead.
type mountOption struct {
	flag  uintptr
	clear bool
}

// mountOptions is the fixed 33-entry translation table from spec.md's
// glossary. Options not present here are passed through as comma-joined
// data string entries (e.g. filesystem-specific options like "size=64m").
var mountOptions = map[string]mountOption{
	"ro":           {unix.MS_RDONLY, false},
	"rw":           {unix.MS_RDONLY, true},
	"suid":         {unix.MS_NOSUID, true},
	"nosuid":       {unix.MS_NOSUID, false},
	"dev":          {unix.MS_NODEV, true},
	"nodev":        {unix.MS_NODEV, false},
	"exec":         {unix.MS_NOEXEC, true},
	"noexec":       {unix.MS_NOEXEC, false},
	"sync":         {unix.MS_SYNCHRONOUS, false},
	"async":        {unix.MS_SYNCHRONOUS, true},
	"dirsync":      {unix.MS_DIRSYNC, false},
	"remount":      {unix.MS_REMOUNT, false},
	"mand":         {unix.MS_MANDLOCK, false},
	"nomand":       {unix.MS_MANDLOCK, true},
	"atime":        {unix.MS_NOATIME, true},
	"noatime":      {unix.MS_NOATIME, false},
	"diratime":     {unix.MS_NODIRATIME, true},
	"nodiratime":   {unix.MS_NODIRATIME, false},
	"bind":         {unix.MS_BIND, false},
	"rbind":        {unix.MS_BIND | unix.MS_REC, false},
	"unbindable":   {unix.MS_UNBINDABLE, false},
	"runbindable":  {unix.MS_UNBINDABLE | unix.MS_REC, false},
	"private":      {unix.MS_PRIVATE, false},
	"rprivate":     {unix.MS_PRIVATE | unix.MS_REC, false},
	"shared":       {unix.MS_SHARED, false},
	"rshared":      {unix.MS_SHARED | unix.MS_REC, false},
	"slave":        {unix.MS_SLAVE, false},
	"rslave":       {unix.MS_SLAVE | unix.MS_REC, false},
	"relatime":     {unix.MS_RELATIME, false},
	"norelatime":   {unix.MS_RELATIME, true},
	"strictatime":  {unix.MS_STRICTATIME, false},
	"nostrictatime": {unix.MS_STRICTATIME, true},
	"defaults":     {0, false},
}

// ParseMountOptions translates an OCI mount's option list into the
// (MsFlags, data) pair mount(2) expects, per spec.md §4.4 step 2: each
// recognised option sets or clears a bit, and anything else is folded
// into a comma-separated data string.
func ParseMountOptions(options []string) (uintptr, string) {
	var flags uintptr
	var data []string

	for _, opt := range options {
		if mo, ok := mountOptions[opt]; ok {
			if mo.clear {
				flags &^= mo.flag
			} else {
				flags |= mo.flag
			}
			continue
		}
		data = append(data, opt)
	}

	return flags, strings.Join(data, ",")
}
