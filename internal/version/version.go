// In file: internal/version/version.go

// Package version holds the logical versions of the components that shape a
// chat answer. They are embedded in response cache keys, so bumping one
// invalidates every cached answer produced by the old behavior.
package version

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComponentVersions is bumped by hand before deploying a change to a component.
var ComponentVersions = struct {
	// Tools changes when the capability server's tools change behavior.
	Tools string
	// ContextData changes when the resource documents served over MCP change.
	ContextData string
	// PromptLogic changes when the context template or loop settings change.
	PromptLogic string
}{
	Tools:       "v1.0",
	ContextData: "v1.0",
	PromptLogic: "v1.0",
}

// Suffix renders the current versions compactly, e.g. "tv1.0_cv1.0_pv1.0".
func Suffix() string {
	return fmt.Sprintf("tv%s_cv%s_pv%s",
		ComponentVersions.Tools,
		ComponentVersions.ContextData,
		ComponentVersions.PromptLogic,
	)
}

// GenerateVersionedCacheKey builds "<prefix>:<sha256(payload)>:<versions>".
func GenerateVersionedCacheKey(prefix, payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return fmt.Sprintf("%s:%s:%s", prefix, hex.EncodeToString(sum[:]), Suffix())
}
