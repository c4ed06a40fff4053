//go:build unix

package durability

import (
	"os"

	"golang.org/x/sys/unix"
)

// fsync issues an explicit fdatasync via golang.org/x/sys/unix rather than
// relying solely on os.File.Sync, matching spec.md §4.2
// "append-then-fsync-on-commit-boundary" and letting the durability log
// avoid syncing inode metadata such as mtime that reading the data back
// does not need (fdatasync still flushes a file-size change).
func fsync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
