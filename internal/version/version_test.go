package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateVersionedCacheKey(t *testing.T) {
	key := GenerateVersionedCacheKey("chatcache", "hello")
	parts := strings.Split(key, ":")
	assert.Len(t, parts, 3)
	assert.Equal(t, "chatcache", parts[0])
	assert.Len(t, parts[1], 64)
	assert.Equal(t, "tv1.0_cv1.0_pv1.0", parts[2])

	assert.Equal(t, key, GenerateVersionedCacheKey("chatcache", "hello"))
	assert.NotEqual(t, key, GenerateVersionedCacheKey("chatcache", "hello!"))
}

func TestVersionBumpChangesKey(t *testing.T) {
	before := GenerateVersionedCacheKey("chatcache", "hello")

	saved := ComponentVersions.Tools
	ComponentVersions.Tools = "v1.1"
	t.Cleanup(func() { ComponentVersions.Tools = saved })

	assert.NotEqual(t, before, GenerateVersionedCacheKey("chatcache", "hello"))
}
