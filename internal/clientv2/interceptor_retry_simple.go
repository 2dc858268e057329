package clientv2

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"time"

	"github.com/daytonaio/go-sdk/internal/backoff"
)

type RetryOptions struct {
	// RetryMax 最大重试次数，不含首次请求，0 表示不重试
	RetryMax int
	// Backoff 重试间隔，默认为 backoff.DefaultRetry()
	Backoff backoff.Backoff
	// ShouldRetry 判断是否需要重试
	ShouldRetry func(req *http.Request, resp *http.Response, err error) bool
}

func DefaultOptions() RetryOptions {
	o := RetryOptions{RetryMax: 3}
	o.Init()
	return o
}

func (o *RetryOptions) Init() {
	if o == nil {
		return
	}

	if o.RetryMax < 0 {
		o.RetryMax = 0
	}

	if o.Backoff == nil {
		o.Backoff = backoff.DefaultRetry()
	}

	if o.ShouldRetry == nil {
		o.ShouldRetry = isSimpleRetryable
	}
}

type simpleRetryInterceptor struct {
	options RetryOptions
}

func NewSimpleRetryInterceptor(options RetryOptions) Interceptor {
	options.Init()
	return &simpleRetryInterceptor{
		options: options,
	}
}

func (r *simpleRetryInterceptor) Priority() InterceptorPriority {
	return InterceptorPriorityRetrySimple
}

func (r *simpleRetryInterceptor) Intercept(req *http.Request, handler Handler) (resp *http.Response, err error) {
	// 不重试
	if req == nil || r.options.RetryMax == 0 || isRetryDisabled(req.Context()) {
		return handler(req)
	}

	ctx := req.Context()
	for i := 0; ; i++ {
		// Clone 防止后面 Handler 处理对 req 有污染
		reqBefore := req.Clone(ctx)
		resp, err = handler(req)

		if i >= r.options.RetryMax || !r.options.ShouldRetry(reqBefore, resp, err) {
			return resp, err
		}

		if req, err = rewindRequest(reqBefore); err != nil {
			return resp, err
		}
		discardResponse(resp)

		timer := time.NewTimer(r.options.Backoff.Time(ctx, &backoff.Options{Attempts: i}))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func rewindRequest(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	req.Body = body
	return req, nil
}

func discardResponse(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
	resp.Body.Close()
}

func isSimpleRetryable(req *http.Request, resp *http.Response, err error) bool {
	return isRequestSimpleRetryable(req) && isResponseSimpleRetryable(resp) && isErrorSimpleRetryable(err)
}

func isRequestSimpleRetryable(req *http.Request) bool {
	if req == nil {
		return false
	}
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
	default:
		// 非幂等请求重试可能导致重复执行
		return false
	}
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func isResponseSimpleRetryable(resp *http.Response) bool {
	if resp == nil {
		return true
	}

	switch statusCode := resp.StatusCode; {
	case statusCode == http.StatusTooManyRequests:
		return true
	case statusCode == http.StatusNotImplemented:
		return false
	default:
		return statusCode >= 500
	}
}

func isErrorSimpleRetryable(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return isNetworkError(err)
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	switch t := err.(type) {
	case *net.OpError:
		return isNetworkErrorWithOpError(t)
	case *url.Error:
		if errors.Is(t.Err, io.EOF) || errors.Is(t.Err, io.ErrUnexpectedEOF) {
			return true
		}
		return isNetworkError(t.Err)
	case net.Error:
		return t.Timeout()
	default:
		return false
	}
}

func isNetworkErrorWithOpError(err *net.OpError) bool {
	if err == nil {
		return false
	}

	switch t := err.Err.(type) {
	case *net.DNSError:
		return true
	case *os.SyscallError:
		if errno, ok := t.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT:
				return true
			}
		}
	}

	return false
}
