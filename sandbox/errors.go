package sandbox

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/daytonaio/go-sdk/internal/clientv2"
)

var (
	// ErrMissingAPIKey 表示配置、环境变量和配置文件中都没有 API Key。
	ErrMissingAPIKey = errors.New("api key is required")
	// ErrInvalidParams 表示参数校验失败。
	ErrInvalidParams = errors.New("invalid params")
	// ErrUnsupportedLanguage 表示不支持的代码语言。
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrCommandNotFound 表示异步执行的会话命令无法在会话中找到。
	ErrCommandNotFound = errors.New("session command not found")
	// ErrSandboxError 表示沙箱进入了 error 状态。
	ErrSandboxError = errors.New("sandbox is in error state")
	// ErrNodeDomainMissing 表示沙箱元数据中缺少节点域名，无法生成预览链接。
	ErrNodeDomainMissing = errors.New("node domain not found in provider metadata")
)

// APIError 表示 API 返回的非预期 HTTP 响应。
type APIError struct {
	StatusCode int
	Body       []byte

	// Code 是从响应 body 中解析出的错误码（如果有）。
	Code string
	// Message 是从响应 body 中解析出的错误消息，解析失败时为原始 body。
	Message string
	// RequestID 是服务端返回的请求 ID，排查问题时使用。
	RequestID string
}

// Error 实现 error 接口。
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status %d, body: %s", e.StatusCode, string(e.Body))
}

// toAPIError 把传输层的 ResponseError 转换为 APIError，其他错误原样返回。
func toAPIError(err error) error {
	var respErr *clientv2.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}
	return &APIError{
		StatusCode: respErr.StatusCode,
		Body:       respErr.Body,
		Code:       respErr.Code,
		Message:    respErr.Message,
		RequestID:  respErr.RequestID,
	}
}

// IsNotFound 判断错误是否为"未找到"类型。
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}
