package clientv2

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/daytonaio/go-sdk/conf"
)

const headerRequestID = "X-Request-Id"

type defaultHeaderInterceptor struct{}

func newDefaultHeaderInterceptor() Interceptor {
	return defaultHeaderInterceptor{}
}

func (defaultHeaderInterceptor) Priority() InterceptorPriority {
	return InterceptorPrioritySetHeader
}

func (defaultHeaderInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	if req == nil {
		return handler(req)
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", conf.UserAgent())
	}
	if req.Header.Get(headerRequestID) == "" {
		req.Header.Set(headerRequestID, uuid.NewString())
	}
	return handler(req)
}
