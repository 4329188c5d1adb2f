//go:build !windows

package txn

import (
	"os"
	"syscall"
)

// statOwnership extracts the owner, group, and permission bits install(1)
// needs to reproduce a file's metadata exactly (the install-exact variant).
func statOwnership(info os.FileInfo) (uid, gid int, mode uint32, err error) {
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, 0, ErrChildFailed
	}
	return int(sys.Uid), int(sys.Gid), uint32(info.Mode().Perm()), nil
}
