package env

import (
	"os"
	"strings"
)

const (
	environmentVariableNameDaytonaAPIKey     = "DAYTONA_API_KEY"
	environmentVariableNameDaytonaServerURL  = "DAYTONA_SERVER_URL"
	environmentVariableNameDaytonaTarget     = "DAYTONA_TARGET"
	environmentVariableNameDaytonaConfigFile = "DAYTONA_CONFIG_FILE"
	environmentVariableNameDaytonaProfile    = "DAYTONA_PROFILE"
	environmentVariableNameDaytonaDebug      = "DAYTONA_DEBUG"
)

func APIKeyFromEnvironment() string {
	return strings.TrimSpace(os.Getenv(environmentVariableNameDaytonaAPIKey))
}

func ServerURLFromEnvironment() string {
	return strings.TrimRight(strings.TrimSpace(os.Getenv(environmentVariableNameDaytonaServerURL)), "/")
}

func TargetFromEnvironment() string {
	return strings.TrimSpace(os.Getenv(environmentVariableNameDaytonaTarget))
}

func ConfigFileFromEnvironment() string {
	return os.Getenv(environmentVariableNameDaytonaConfigFile)
}

func ProfileFromEnvironment() string {
	return os.Getenv(environmentVariableNameDaytonaProfile)
}

// DebugFromEnvironment 第二个返回值表示环境变量是否被设置
func DebugFromEnvironment() (bool, bool) {
	value := strings.ToLower(os.Getenv(environmentVariableNameDaytonaDebug))
	if value == "" {
		return false, false
	}
	return value == "true" || value == "yes" || value == "y" || value == "1", true
}
