//go:build unix

package findexec

import (
	"io/fs"
	"syscall"
)

// FileOwner extracts the owning uid from file info on Unix systems.
func FileOwner(info fs.FileInfo) (uint32, bool) {
	if info == nil {
		return 0, false
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}

	return stat.Uid, true
}
