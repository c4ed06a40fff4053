package durability

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// FormatVersion is the on-disk WAL format version. storage.Open writes it
// as record 0 (type 0, sequence number 0) of a new log and passes it to
// CheckVersion when it reopens an existing one.
const FormatVersion = "v1.0.0"

// SupportedMin/SupportedMax bound the WAL format versions this binary can
// open. CheckVersion refuses to open a database outside that range rather
// than silently misreading its records (SPEC_FULL §11, golang.org/x/mod/semver).
var (
	SupportedMin = "v1.0.0"
	SupportedMax = "v1.999.999"
)

func CheckVersion(onDisk string) error {
	if !semver.IsValid(onDisk) {
		return fmt.Errorf("durability: invalid wal format version %q", onDisk)
	}
	if semver.Compare(onDisk, SupportedMin) < 0 || semver.Compare(onDisk, SupportedMax) > 0 {
		return fmt.Errorf("durability: wal format version %s unsupported by this binary (supports %s..%s)",
			onDisk, SupportedMin, SupportedMax)
	}
	return nil
}
