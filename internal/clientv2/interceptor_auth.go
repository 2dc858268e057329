package clientv2

import (
	"errors"
	"net/http"
)

var ErrEmptyAPIKey = errors.New("empty api key")

type AuthConfig struct {
	// APIKey 以 Bearer 方式放入 Authorization 请求头
	APIKey string
	// 签名前回调函数
	BeforeSign func(*http.Request)
	// 签名后回调函数
	AfterSign func(*http.Request)
}

type authInterceptor struct {
	config AuthConfig
}

func NewAuthInterceptor(config AuthConfig) Interceptor {
	return &authInterceptor{
		config: config,
	}
}

func (interceptor *authInterceptor) Priority() InterceptorPriority {
	return InterceptorPriorityAuth
}

func (interceptor *authInterceptor) Intercept(req *http.Request, handler Handler) (*http.Response, error) {
	if interceptor == nil || req == nil {
		return handler(req)
	}
	if interceptor.config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	if interceptor.config.BeforeSign != nil {
		interceptor.config.BeforeSign(req)
	}
	req.Header.Set("Authorization", "Bearer "+interceptor.config.APIKey)
	if interceptor.config.AfterSign != nil {
		interceptor.config.AfterSign(req)
	}

	return handler(req)
}
