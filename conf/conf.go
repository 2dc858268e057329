package conf

const Version = "0.1.0"

const (
	CONTENT_TYPE_JSON      = "application/json"
	CONTENT_TYPE_OCTET     = "application/octet-stream"
	CONTENT_TYPE_MULTIPART = "multipart/form-data"
)

// UserAgent 是 SDK 发出请求时携带的 User-Agent
func UserAgent() string {
	return "daytona-go-sdk/" + Version
}
