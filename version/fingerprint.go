package version

import (
	"fmt"
)

// 0-9 are digits, then upper case letters.
func versionChar(v int) byte {
	if v < 0 || v >= 36 {
		panic(fmt.Sprintf("version number %d out of range", v))
	}
	if v < 10 {
		return byte('0' + v)
	}
	return byte('A' + v - 10)
}

// Azureus-style BEP 20 peer ID prefix: dash, two character client name, four version characters,
// dash. GenerateFingerprint("PW", 0, 0, 0, 1) is "-PW0001-".
func GenerateFingerprint(name string, major, minor, revision, tag int) string {
	if len(name) != 2 {
		name = "--"
	}
	return fmt.Sprintf("-%s%c%c%c%c-",
		name,
		versionChar(major),
		versionChar(minor),
		versionChar(revision),
		versionChar(tag),
	)
}
