//go:build unit
// +build unit

package configfile

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[default]
api_key = "key-1"

[staging]
api_key = "key-2"
server_url = "https://staging.daytona.example/api"
target = "eu"
`), 0o600))

	ps, err := Load(path)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "key-1", ps["default"].APIKey)
	assert.Empty(t, ps["default"].ServerURL)
	assert.Equal(t, "https://staging.daytona.example/api", ps["staging"].ServerURL)
	assert.Equal(t, "eu", ps["staging"].Target)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default:
  api_key: key-1
  target: us
`), 0o600))

	ps, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "key-1", ps["default"].APIKey)
	assert.Equal(t, "us", ps["default"].Target)
}

func TestLoadMissingFile(t *testing.T) {
	ps, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[default\napi_key="), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveProfileKeepsOthers(t *testing.T) {
	for _, name := range []string{"config.toml", "config.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, SaveProfile(path, "default", Profile{APIKey: "a"}))
			require.NoError(t, SaveProfile(path, "other", Profile{APIKey: "b", Target: "eu"}))
			require.NoError(t, SaveProfile(path, "default", Profile{APIKey: "c"}))

			ps, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, "c", ps["default"].APIKey)
			assert.Equal(t, "b", ps["other"].APIKey)
			assert.Equal(t, "eu", ps["other"].Target)
		})
	}
}

func TestSaveProfileConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	var wg sync.WaitGroup
	for _, name := range []string{"p1", "p2", "p3", "p4"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, SaveProfile(path, name, Profile{APIKey: name}))
		}(name)
	}
	wg.Wait()

	ps, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, ps, 4)
}

func TestSaveProfileInvalidName(t *testing.T) {
	err := SaveProfile(filepath.Join(t.TempDir(), "config.toml"), "", Profile{})
	assert.ErrorIs(t, err, ErrInvalidProfileName)
}
