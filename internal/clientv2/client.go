package clientv2

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"
)

type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

type Handler func(req *http.Request) (*http.Response, error)

type client struct {
	coreClient   Client
	interceptors []Interceptor
}

// NewClient 用拦截器包装 cli，cli 为 nil 时使用 http.DefaultClient。
// 拦截器按优先级从外到内排列，数字越小越靠外。
func NewClient(cli Client, interceptors ...Interceptor) Client {
	if cli == nil {
		cli = http.DefaultClient
	}

	is := Interceptors(append([]Interceptor{}, interceptors...))
	is = append(is, newDefaultHeaderInterceptor())
	is = append(is, newDebugInterceptor())
	sort.Stable(is)

	// 反转
	for i, j := 0, len(is)-1; i < j; i, j = i+1, j-1 {
		is[i], is[j] = is[j], is[i]
	}

	return &client{
		coreClient:   cli,
		interceptors: is,
	}
}

func (c *client) Do(req *http.Request) (*http.Response, error) {
	handler := func(req *http.Request) (*http.Response, error) {
		return c.coreClient.Do(req)
	}

	for _, interceptor := range c.interceptors {
		h := handler
		i := interceptor
		handler = func(r *http.Request) (*http.Response, error) {
			return i.Intercept(r, h)
		}
	}

	return handleResponseAndError(handler(req))
}

// Do 构造请求并发送。非 2xx 响应的 body 会被读取并关闭，错误类型为 *ResponseError；
// 2xx 响应的 body 由调用方负责关闭。
func Do(c Client, options RequestParams) (*http.Response, error) {
	req, err := NewRequest(options)
	if err != nil {
		return nil, err
	}

	return handleResponseAndError(c.Do(req))
}

func handleResponseAndError(resp *http.Response, err error) (*http.Response, error) {
	if err != nil {
		return resp, err
	}

	if resp == nil {
		return nil, &ResponseError{StatusCode: -1, Message: "unknown error, no response"}
	}

	if resp.StatusCode/100 != 2 {
		respErr := NewResponseError(resp)
		resp.Body = http.NoBody
		return resp, respErr
	}

	return resp, nil
}

// DoAndDecodeJsonResponse 发送请求并将 JSON 响应解析到 ret，ret 为 nil 时丢弃响应 body
func DoAndDecodeJsonResponse(c Client, options RequestParams, ret interface{}) error {
	resp, err := Do(c, options)
	defer func() {
		if resp != nil && resp.Body != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}()

	if err != nil {
		return err
	}

	if ret == nil || resp.ContentLength == 0 {
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(ret); err != nil && err != io.EOF {
		return err
	}
	return nil
}
