//go:build windows

package txn

import "os"

// statOwnership has no meaningful uid/gid concept on Windows: uid and gid
// are always reported as 0 and only mode comes from the file. The
// install-exact variant still passes them to install(1) as -o 0 -g 0.
func statOwnership(info os.FileInfo) (uid, gid int, mode uint32, err error) {
	return 0, 0, uint32(info.Mode().Perm()), nil
}
