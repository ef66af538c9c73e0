package cli

import (
	"fmt"
	"runtime/debug"
)

// VersionCmd prints the build version embedded by the Go toolchain.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("lcbench version %s\n", version)
	return nil
}
