package version

import (
	"testing"

	qt "github.com/go-quicktest/qt"
)

func TestGenerateFingerprint(t *testing.T) {
	qt.Check(t, qt.Equals(GenerateFingerprint("PW", 0, 0, 0, 1), "-PW0001-"))
	qt.Check(t, qt.Equals(GenerateFingerprint("LT", 2, 0, 11, 0), "-LT20B0-"))
	qt.Check(t, qt.Equals(GenerateFingerprint("x", 1, 2, 3, 4), "---1234-"))
	qt.Check(t, qt.PanicMatches(func() { GenerateFingerprint("PW", 36, 0, 0, 0) }, "version number 36 out of range"))
	qt.Check(t, qt.Equals(DefaultBep20Prefix, "-PW0001-"))
	qt.Check(t, qt.Not(qt.Equals(DefaultClientVersion, "")))
}
