//go:build unit
// +build unit

package sandbox

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSandboxID = "sandbox-test"

// newTestClient 返回一个指向 router 的客户端，不重试，日志丢弃
func newTestClient(t *testing.T, router *mux.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c, err := NewClient(&Config{
		APIKey:    "test-key",
		ServerURL: srv.URL,
		Target:    TargetUS,
		RetryMax:  -1,
		Logger:    logger,
	})
	require.NoError(t, err)
	return c
}

// newTestSandbox 返回一个已启动的 python 沙箱，不发送请求
func newTestSandbox(t *testing.T, router *mux.Router) *Sandbox {
	t.Helper()
	c := newTestClient(t, router)
	sb, err := newSandbox(c, instanceWithState(testSandboxID, StateStarted, nil), CodeLanguagePython)
	require.NoError(t, err)
	return sb
}

func instanceWithState(id string, state SandboxState, labels map[string]string) *SandboxInstance {
	md, _ := json.Marshal(map[string]interface{}{
		"state":      state,
		"nodeDomain": "node.daytona.test",
	})
	return &SandboxInstance{
		ID:     id,
		Name:   id,
		Labels: labels,
		Target: string(TargetUS),
		Info:   &SandboxInstanceInfo{Name: id, ProviderMetadata: string(md)},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody 在 handler 中使用，不能调用 require
func decodeBody(t *testing.T, r *http.Request, v interface{}) {
	t.Helper()
	assert.NoError(t, json.NewDecoder(r.Body).Decode(v))
}
