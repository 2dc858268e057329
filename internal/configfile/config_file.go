package configfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/daytonaio/go-sdk/internal/env"
)

// DefaultProfileName 未指定 DAYTONA_PROFILE 时使用的 profile
const DefaultProfileName = "default"

// Profile 配置文件中的一个 profile
type Profile struct {
	APIKey    string `toml:"api_key,omitempty" yaml:"api_key,omitempty"`
	ServerURL string `toml:"server_url,omitempty" yaml:"server_url,omitempty"`
	Target    string `toml:"target,omitempty" yaml:"target,omitempty"`
}

type profiles map[string]*Profile

var (
	cachedProfiles      profiles
	cachedProfilesError error
	cachedProfilesOnce  sync.Once

	ErrInvalidProfileName = errors.New("invalid profile name")
)

// CurrentProfile 返回环境变量指定的配置文件中当前 profile，文件或 profile 不存在时返回 nil
func CurrentProfile() (*Profile, error) {
	cachedProfilesOnce.Do(func() {
		cachedProfiles, cachedProfilesError = Load(Path())
	})
	if cachedProfilesError != nil {
		return nil, cachedProfilesError
	}
	name := env.ProfileFromEnvironment()
	if name == "" {
		name = DefaultProfileName
	}
	return cachedProfiles[name], nil
}

// Path 返回配置文件路径，优先使用 DAYTONA_CONFIG_FILE
func Path() string {
	if p := env.ConfigFileFromEnvironment(); p != "" {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}
	return filepath.Join(homeDir, ".daytona", "config.toml")
}

// Load 读取配置文件中的全部 profile，文件不存在时返回空集合
func Load(path string) (map[string]*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return profiles{}, nil
		}
		return nil, err
	}
	return decode(path, data)
}

// SaveProfile 在文件锁保护下写入（或覆盖）名为 name 的 profile，保留其他 profile
func SaveProfile(path, name string, profile Profile) error {
	if name == "" || strings.ContainsAny(name, "[]\n") {
		return ErrInvalidProfileName
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock config file: %w", err)
	}
	defer lock.Unlock()

	existing, err := Load(path)
	if err != nil {
		return err
	}
	existing[name] = &profile

	data, err := encode(path, existing)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func decode(path string, data []byte) (profiles, error) {
	ps := profiles{}
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &ps); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if _, err := toml.Decode(string(data), &ps); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if ps == nil {
		ps = profiles{}
	}
	return ps, nil
}

func encode(path string, ps profiles) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(ps)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(ps); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
