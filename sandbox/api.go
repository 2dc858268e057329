package sandbox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/oapi-codegen/runtime"

	"github.com/daytonaio/go-sdk/internal/clientv2"
)

// pathParam 按 OpenAPI simple 风格编码路径参数
func pathParam(name string, value interface{}) (string, error) {
	v, err := runtime.StyleParamWithLocation("simple", false, name, runtime.ParamLocationPath, value)
	if err != nil {
		return "", fmt.Errorf("invalid path param %s: %w", name, err)
	}
	return v, nil
}

// query 按 OpenAPI form 风格编码查询参数，值为 nil 的参数会被忽略
type query []queryParam

type queryParam struct {
	name  string
	value interface{}
}

func (q query) with(name string, value interface{}) query {
	return append(q, queryParam{name: name, value: value})
}

func (q query) encode() (string, error) {
	values := url.Values{}
	for _, p := range q {
		if p.value == nil {
			continue
		}
		frag, err := runtime.StyleParamWithLocation("form", true, p.name, runtime.ParamLocationQuery, p.value)
		if err != nil {
			return "", fmt.Errorf("invalid query param %s: %w", p.name, err)
		}
		parsed, err := url.ParseQuery(frag)
		if err != nil {
			return "", fmt.Errorf("invalid query param %s: %w", p.name, err)
		}
		for k, vs := range parsed {
			for _, v := range vs {
				values.Add(k, v)
			}
		}
	}
	return values.Encode(), nil
}

// endpoint 描述一次 API 调用的路径，segments 中形如 {name} 的片段会被 params 中同名参数替换
type endpoint struct {
	segments []string
	params   map[string]interface{}
	query    query
}

func newEndpoint(path string) *endpoint {
	return &endpoint{
		segments: strings.Split(strings.Trim(path, "/"), "/"),
		params:   map[string]interface{}{},
	}
}

func (e *endpoint) param(name string, value interface{}) *endpoint {
	e.params[name] = value
	return e
}

func (e *endpoint) queryParam(name string, value interface{}) *endpoint {
	e.query = e.query.with(name, value)
	return e
}

func (e *endpoint) url(serverURL string) (string, error) {
	var b strings.Builder
	b.WriteString(serverURL)
	for _, seg := range e.segments {
		b.WriteByte('/')
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			name := seg[1 : len(seg)-1]
			value, ok := e.params[name]
			if !ok {
				return "", fmt.Errorf("missing path param %s", name)
			}
			encoded, err := pathParam(name, value)
			if err != nil {
				return "", err
			}
			b.WriteString(encoded)
			continue
		}
		b.WriteString(seg)
	}
	if len(e.query) > 0 {
		q, err := e.query.encode()
		if err != nil {
			return "", err
		}
		if q != "" {
			b.WriteByte('?')
			b.WriteString(q)
		}
	}
	return b.String(), nil
}

// do 发送请求，2xx 响应由调用方关闭 body，非 2xx 返回 *APIError
func (c *Client) do(ctx context.Context, method string, ep *endpoint, getBody clientv2.GetRequestBody) (*http.Response, error) {
	u, err := ep.url(c.config.ServerURL)
	if err != nil {
		return nil, err
	}
	resp, err := clientv2.Do(c.http, clientv2.RequestParams{
		Context: ctx,
		Method:  method,
		Url:     u,
		GetBody: getBody,
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	return resp, nil
}

// doJSON 以 JSON 发送 body（可为 nil），并把 JSON 响应解析到 ret（可为 nil）
func (c *Client) doJSON(ctx context.Context, method string, ep *endpoint, body, ret interface{}) error {
	var getBody clientv2.GetRequestBody
	if body != nil {
		var err error
		if getBody, err = clientv2.GetJsonRequestBody(body); err != nil {
			return err
		}
	}
	u, err := ep.url(c.config.ServerURL)
	if err != nil {
		return err
	}
	err = clientv2.DoAndDecodeJsonResponse(c.http, clientv2.RequestParams{
		Context: ctx,
		Method:  method,
		Url:     u,
		GetBody: getBody,
	}, ret)
	return toAPIError(err)
}

// doBytes 返回完整的响应 body
func (c *Client) doBytes(ctx context.Context, method string, ep *endpoint) ([]byte, error) {
	resp, err := c.do(ctx, method, ep, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
