//go:build unit
// +build unit

package clientv2

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthInterceptor(t *testing.T) {
	beforeCalled, afterCalled := false, false
	interceptor := NewAuthInterceptor(AuthConfig{
		APIKey: "dtn_test",
		BeforeSign: func(req *http.Request) {
			beforeCalled = true
			assert.Empty(t, req.Header.Get("Authorization"))
		},
		AfterSign: func(req *http.Request) {
			afterCalled = true
			assert.Equal(t, "Bearer dtn_test", req.Header.Get("Authorization"))
		},
	})
	c := NewClient(&testClient{statusCode: http.StatusOK}, interceptor)
	resp, err := Do(c, RequestParams{
		Method: RequestMethodGet,
		Url:    "https://app.daytona.io/api/workspace",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, beforeCalled)
	assert.True(t, afterCalled)
}

func TestAuthInterceptorEmptyKey(t *testing.T) {
	c := NewClient(&testClient{statusCode: http.StatusOK}, NewAuthInterceptor(AuthConfig{}))
	_, err := Do(c, RequestParams{Url: "https://app.daytona.io/api/workspace"})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)
}
