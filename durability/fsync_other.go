//go:build !unix

package durability

import "os"

func fsync(f *os.File) error {
	return f.Sync()
}
