package clientv2

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBodySize 错误响应 body 最多读取的字节数
const maxErrorBodySize = 64 << 10

// ResponseError 表示服务端返回了非 2xx 响应
type ResponseError struct {
	StatusCode int
	Body       []byte
	Code       string
	Message    string
	RequestID  string
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

// NewResponseError 读取并关闭 resp.Body，从 JSON 中提取 message / code 字段，
// body 不是 JSON 或没有 message 字段时使用原始 body 作为 Message
func NewResponseError(resp *http.Response) *ResponseError {
	e := &ResponseError{StatusCode: resp.StatusCode}
	if resp.Header != nil {
		e.RequestID = resp.Header.Get(headerRequestID)
	}
	if resp.Body != nil {
		e.Body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		resp.Body.Close()
	}
	e.Code, e.Message = parseErrorBody(e.Body)
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(e.Body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

func parseErrorBody(body []byte) (code, message string) {
	if len(body) == 0 {
		return "", ""
	}
	var parsed struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return "", ""
	}
	code = strings.Trim(string(parsed.Code), `"`)
	message = parsed.Message
	if message == "" {
		message = parsed.Error
	}
	return code, message
}
