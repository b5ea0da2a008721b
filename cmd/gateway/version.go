// In file: cmd/gateway/version.go
package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const serviceName = "finance-chat-gateway"

// Set at build time with -ldflags "-X main.version=...".
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

// BuildInfo identifies the running gateway binary in startup logs.
type BuildInfo struct {
	Service, Module, Version, BuildDate, GitCommit, GoVersion, Platform string
}

func GetBuildInfo() BuildInfo {
	info := BuildInfo{
		Service:   serviceName,
		Module:    "unknown",
		Version:   version,
		BuildDate: buildDate,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	// Without ldflags, fall back to what the toolchain embedded.
	if bi, ok := debug.ReadBuildInfo(); ok {
		if bi.Main.Path != "" {
			info.Module = bi.Main.Path
		}
		if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && info.GitCommit == "unknown" {
				info.GitCommit = s.Value
			}
		}
	}
	return info
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s %s [%s] (commit %s, built %s, %s %s)",
		b.Service, b.Version, b.Module, b.GitCommit, b.BuildDate, b.GoVersion, b.Platform)
}
