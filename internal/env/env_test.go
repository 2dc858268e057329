//go:build unit
// +build unit

package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerURLFromEnvironment(t *testing.T) {
	t.Setenv("DAYTONA_SERVER_URL", " https://daytona.example.com/api/ ")
	assert.Equal(t, "https://daytona.example.com/api", ServerURLFromEnvironment())
}

func TestDebugFromEnvironment(t *testing.T) {
	t.Setenv("DAYTONA_DEBUG", "")
	enabled, set := DebugFromEnvironment()
	assert.False(t, enabled)
	assert.False(t, set)

	for _, v := range []string{"1", "true", "YES", "y"} {
		t.Setenv("DAYTONA_DEBUG", v)
		enabled, set = DebugFromEnvironment()
		assert.True(t, enabled, v)
		assert.True(t, set, v)
	}

	t.Setenv("DAYTONA_DEBUG", "off")
	enabled, set = DebugFromEnvironment()
	assert.False(t, enabled)
	assert.True(t, set)
}
