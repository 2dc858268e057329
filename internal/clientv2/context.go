package clientv2

import (
	"context"
)

type noRetryContextKey struct{}

// WithoutRetry 标记请求不允许被重试，用于长连接流式读取等非幂等场景
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryContextKey{}, struct{}{})
}

func isRetryDisabled(ctx context.Context) bool {
	return ctx != nil && ctx.Value(noRetryContextKey{}) != nil
}
