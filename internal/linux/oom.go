package linux

import (
	"os"
	"strconv"

	"github.com/reno-project/reno/internal/ocierr"
)

// SetOomScoreAdj writes /proc/self/oom_score_adj (spec.md §4.7).
func SetOomScoreAdj(adj *int) error {
	if adj == nil {
		return nil
	}
	if err := os.WriteFile("/proc/self/oom_score_adj", []byte(strconv.Itoa(*adj)), 0o644); err != nil {
		return ocierr.New(ocierr.SysctlError, err, "writing oom_score_adj=%d", *adj)
	}
	return nil
}
