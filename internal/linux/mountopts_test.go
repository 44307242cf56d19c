package linux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestParseMountOptions(t *testing.T) {
	tests := []struct {
		name      string
		options   []string
		wantFlags uintptr
		wantData  string
	}{
		{
			name:      "bind mount",
			options:   []string{"rbind", "nosuid", "nodev", "noexec"},
			wantFlags: unix.MS_BIND | unix.MS_REC | unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC,
		},
		{
			name:      "readonly tmpfs with size data",
			options:   []string{"ro", "size=64m"},
			wantFlags: unix.MS_RDONLY,
			wantData:  "size=64m",
		},
		{
			name:      "rw clears an earlier ro",
			options:   []string{"ro", "rw"},
			wantFlags: 0,
		},
		{
			name:      "unrecognised options fold into data",
			options:   []string{"mode=755", "uid=1000"},
			wantFlags: 0,
			wantData:  "mode=755,uid=1000",
		},
		{
			name:      "empty options",
			options:   nil,
			wantFlags: 0,
			wantData:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, data := ParseMountOptions(tt.options)
			assert.Equal(t, tt.wantFlags, flags)
			assert.Equal(t, tt.wantData, data)
		})
	}
}

// TestParseMountOptionsEveryEntryPairwise walks the full mountOptions
// table and checks option-table idempotence (spec.md §8 property 4) for
// every entry: a setting option turns its bit on from a clear start, and
// (where a paired clearing option exists) applying it afterwards clears
// that bit back out, leaving no other bits disturbed.
func TestParseMountOptionsEveryEntryPairwise(t *testing.T) {
	for opt, mo := range mountOptions {
		t.Run(opt, func(t *testing.T) {
			flags, data := ParseMountOptions([]string{opt})
			assert.Empty(t, data)
			if mo.clear {
				// A clearing option starting from zero flags has nothing
				// to clear; confirm it's a no-op rather than setting bits.
				assert.Zero(t, flags)
			} else {
				assert.Equal(t, mo.flag, flags&mo.flag)
			}
		})
	}

	for _, pair := range [][2]string{
		{"ro", "rw"}, {"nosuid", "suid"}, {"nodev", "dev"}, {"noexec", "exec"},
		{"sync", "async"}, {"mand", "nomand"}, {"noatime", "atime"}, {"nodiratime", "diratime"},
		{"relatime", "norelatime"}, {"strictatime", "nostrictatime"},
	} {
		t.Run(pair[0]+"+"+pair[1], func(t *testing.T) {
			flags, _ := ParseMountOptions([]string{pair[0], pair[1]})
			assert.Zero(t, flags)
		})
	}
}
