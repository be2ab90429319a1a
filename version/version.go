// Package version provides the identification the local node advertises to peers.
package version

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"
)

var (
	// Peer ID prefix. This should be updated when behaviour changes in a way that other peers could
	// care about.
	DefaultBep20Prefix = GenerateFingerprint("PW", 0, 0, 0, 1)
	// Main program and this module's versions, from build info.
	DefaultClientVersion string
)

func init() {
	type marker struct{}
	thisPkg := reflect.TypeOf(marker{}).PkgPath()
	var (
		mainPath    = "unknown"
		mainVersion = "unknown"
		modVersion  = "unknown"
	)
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		mainPath = buildInfo.Main.Path
		mainVersion = buildInfo.Main.Version
		thisModule := ""
		// The main module reports "(devel)" if it's this module.
		for _, dep := range append(buildInfo.Deps, &buildInfo.Main) {
			if strings.HasPrefix(thisPkg, dep.Path) && len(dep.Path) >= len(thisModule) {
				thisModule = dep.Path
				modVersion = dep.Version
			}
		}
	}
	DefaultClientVersion = fmt.Sprintf("%v %v (anacrolix/peerwire %v)", mainPath, mainVersion, modVersion)
}
