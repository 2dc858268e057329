//go:build unit
// +build unit

package sandbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec(t *testing.T) {
	var body executeRequest
	r := mux.NewRouter()
	r.HandleFunc("/toolbox/{id}/toolbox/process/execute", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, testSandboxID, mux.Vars(req)["id"])
		decodeBody(t, req, &body)
		writeJSON(w, http.StatusOK, ExecuteResponse{ExitCode: 0, Result: "hello\n"})
	}).Methods(http.MethodPost)
	sb := newTestSandbox(t, r)

	resp, err := sb.Process().Exec(context.Background(), "echo hello", WithCwd("/tmp"), WithExecTimeout(1500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", resp.Result)
	assert.Equal(t, "echo hello", body.Command)
	require.NotNil(t, body.Cwd)
	assert.Equal(t, "/tmp", *body.Cwd)
	require.NotNil(t, body.Timeout)
	assert.Equal(t, 2, *body.Timeout)

	_, err = sb.Process().Exec(context.Background(), "true", WithExecTimeout(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestCodeRunPython(t *testing.T) {
	var body executeRequest
	r := mux.NewRouter()
	r.HandleFunc("/toolbox/{id}/toolbox/process/execute", func(w http.ResponseWriter, req *http.Request) {
		decodeBody(t, req, &body)
		writeJSON(w, http.StatusOK, ExecuteResponse{Result: "3\n"})
	}).Methods(http.MethodPost)
	sb := newTestSandbox(t, r)

	code := "print(1 + 2)"
	resp, err := sb.Process().CodeRun(context.Background(), code, &CodeRunParams{
		Argv: []string{"it's"},
		Env:  map[string]string{"B": "2", "A": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "3\n", resp.Result)
	assert.True(t, strings.HasPrefix(body.Command, "sh -c '"))
	assert.Contains(t, body.Command, base64.StdEncoding.EncodeToString([]byte(code)))
	assert.Contains(t, body.Command, "python3 -u -")
	assert.Less(t, strings.Index(body.Command, "A="), strings.Index(body.Command, "B="))
}

func TestCodeToolboxCommands(t *testing.T) {
	py, err := newCodeToolbox(CodeLanguagePython)
	require.NoError(t, err)
	assert.Equal(t,
		"sh -c 'echo cHJpbnQoMSk= | base64 --decode | python3 -u -'",
		py.runCommand("print(1)", nil))

	ts, err := newCodeToolbox(CodeLanguageJavaScript)
	require.NoError(t, err)
	cmd := ts.runCommand("console.log(1)", nil)
	assert.Contains(t, cmd, "npx ts-node")
	assert.Contains(t, cmd, base64.StdEncoding.EncodeToString([]byte("console.log(1)")))

	_, err = newCodeToolbox("cobol")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))

	lang, err := ParseCodeLanguage(" TypeScript ")
	require.NoError(t, err)
	assert.Equal(t, CodeLanguageTypeScript, lang)
	lang, err = ParseCodeLanguage("")
	require.NoError(t, err)
	assert.Equal(t, CodeLanguagePython, lang)
}

func TestSessions(t *testing.T) {
	var (
		mu       sync.Mutex
		created  createSessionRequest
		deleted  string
		commands = []Command{{ID: "c1", Command: "ls", ExitCode: intPtr(0)}}
	)
	r := mux.NewRouter()
	r.HandleFunc("/toolbox/{id}/toolbox/process/session", func(w http.ResponseWriter, req *http.Request) {
		decodeBody(t, req, &created)
	}).Methods(http.MethodPost)
	r.HandleFunc("/toolbox/{id}/toolbox/process/session", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, []Session{{SessionID: "s1"}, {SessionID: "s2"}})
	}).Methods(http.MethodGet)
	r.HandleFunc("/toolbox/{id}/toolbox/process/session/{sid}", func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		writeJSON(w, http.StatusOK, Session{SessionID: mux.Vars(req)["sid"], Commands: commands})
	}).Methods(http.MethodGet)
	r.HandleFunc("/toolbox/{id}/toolbox/process/session/{sid}", func(w http.ResponseWriter, req *http.Request) {
		deleted = mux.Vars(req)["sid"]
	}).Methods(http.MethodDelete)
	r.HandleFunc("/toolbox/{id}/toolbox/process/session/{sid}/command/{cid}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Command{ID: mux.Vars(req)["cid"], Command: "ls"})
	}).Methods(http.MethodGet)
	sb := newTestSandbox(t, r)
	p := sb.Process()
	ctx := context.Background()

	require.NoError(t, p.CreateSession(ctx, "s1"))
	assert.Equal(t, "s1", created.SessionID)
	assert.ErrorIs(t, p.CreateSession(ctx, ""), ErrInvalidParams)

	session, err := p.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", session.SessionID)
	require.Len(t, session.Commands, 1)
	require.NotNil(t, session.Commands[0].ExitCode)

	cmd, err := p.GetSessionCommand(ctx, "s1", "c9")
	require.NoError(t, err)
	assert.Equal(t, "c9", cmd.ID)
	assert.Nil(t, cmd.ExitCode)

	sessions, err := p.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	require.NoError(t, p.DeleteSession(ctx, "s1"))
	assert.Equal(t, "s1", deleted)
}

func TestExecuteSessionCommandSync(t *testing.T) {
	var body SessionExecuteRequest
	r := mux.NewRouter()
	r.HandleFunc("/toolbox/{id}/toolbox/process/session/{sid}/exec", func(w http.ResponseWriter, req *http.Request) {
		decodeBody(t, req, &body)
		writeJSON(w, http.StatusOK, SessionExecuteResponse{CmdID: strPtr("c1"), Output: strPtr("hi\n"), ExitCode: intPtr(0)})
	}).Methods(http.MethodPost)
	sb := newTestSandbox(t, r)

	resp, err := sb.Process().ExecuteSessionCommand(context.Background(), "s1", SessionExecuteRequest{Command: "echo hi"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "echo hi", body.Command)
	assert.False(t, body.Async)
	assert.Equal(t, "c1", *resp.CmdID)
	assert.Equal(t, "hi\n", *resp.Output)

	_, err = sb.Process().ExecuteSessionCommand(context.Background(), "s1", SessionExecuteRequest{}, 0)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestExecuteSessionCommandAsyncFindsLatestCommand(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/toolbox/{id}/toolbox/process/session/{sid}/exec", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
	}).Methods(http.MethodPost)
	r.HandleFunc("/toolbox/{id}/toolbox/process/session/{sid}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Session{SessionID: "s1", Commands: []Command{
			{ID: "c1", Command: "sleep 1"},
			{ID: "c2", Command: "ls"},
			{ID: "c3", Command: "sleep 1"},
		}})
	}).Methods(http.MethodGet)
	sb := newTestSandbox(t, r)
	p := sb.Process()

	resp, err := p.ExecuteSessionCommand(context.Background(), "s1", SessionExecuteRequest{Command: "sleep 1", Async: true}, 0)
	require.NoError(t, err)
	require.NotNil(t, resp.CmdID)
	assert.Equal(t, "c3", *resp.CmdID)
	assert.Nil(t, resp.ExitCode)

	_, err = p.ExecuteSessionCommand(context.Background(), "s1", SessionExecuteRequest{Command: "pwd", Async: true}, 0)
	assert.ErrorIs(t, err, ErrCommandNotFound)
}

func TestGetSessionCommandLogs(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/toolbox/{id}/toolbox/process/session/{sid}/command/{cid}/logs", func(w http.ResponseWriter, req *http.Request) {
		assert.Empty(t, req.URL.Query().Get("follow"))
		fmt.Fprint(w, "line 1\nline 2\n")
	}).Methods(http.MethodGet)
	sb := newTestSandbox(t, r)

	logs, err := sb.Process().GetSessionCommandLogs(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "line 1\nline 2\n", logs)
}

// streamingLogsRouter 返回的日志流写完 chunks 后保持连接直到客户端断开，
// 命令状态接口在 exited 为 true 时返回退出码
func streamingLogsRouter(t *testing.T, chunks []string, exited *int32, statusPolls *int32) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/toolbox/{id}/toolbox/process/session/{sid}/command/{cid}/logs", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "true", req.URL.Query().Get("follow"))
		flusher, ok := w.(http.Flusher)
		if !assert.True(t, ok) {
			return
		}
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for _, chunk := range chunks {
			fmt.Fprint(w, chunk)
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
		<-req.Context().Done()
	}).Methods(http.MethodGet)
	r.HandleFunc("/toolbox/{id}/toolbox/process/session/{sid}/command/{cid}", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(statusPolls, 1)
		cmd := Command{ID: mux.Vars(req)["cid"], Command: "build"}
		if atomic.LoadInt32(exited) == 1 {
			cmd.ExitCode = intPtr(0)
		}
		writeJSON(w, http.StatusOK, cmd)
	}).Methods(http.MethodGet)
	return r
}

func TestFollowSessionCommandLogs(t *testing.T) {
	exited, polls := int32(1), int32(0)
	sb := newTestSandbox(t, streamingLogsRouter(t, []string{"step 1\n", "step 2\n", "done\n"}, &exited, &polls))

	var got strings.Builder
	err := sb.Process().FollowSessionCommandLogs(context.Background(), "s1", "c1",
		func(chunk string) { got.WriteString(chunk) },
		WithLogsPollInterval(100*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "step 1\nstep 2\ndone\n", got.String())
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(2))
}

func TestFollowSessionCommandLogsEndsWithStream(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/toolbox/{id}/toolbox/process/session/{sid}/command/{cid}/logs", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, "héllo wörld")
	}).Methods(http.MethodGet)
	sb := newTestSandbox(t, r)

	var got strings.Builder
	err := sb.Process().FollowSessionCommandLogs(context.Background(), "s1", "c1",
		func(chunk string) { got.WriteString(chunk) })
	require.NoError(t, err)
	assert.Equal(t, "héllo wörld", got.String())
}

func TestFollowSessionCommandLogsCancelled(t *testing.T) {
	exited, polls := int32(0), int32(0)
	sb := newTestSandbox(t, streamingLogsRouter(t, []string{"working\n"}, &exited, &polls))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var got strings.Builder
	err := sb.Process().FollowSessionCommandLogs(ctx, "s1", "c1",
		func(chunk string) { got.WriteString(chunk) },
		WithLogsPollInterval(50*time.Millisecond))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLogsCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "working\n", got.String())
}

func TestFollowSessionCommandLogsNotFound(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/toolbox/{id}/toolbox/process/session/{sid}/command/{cid}/logs", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "command not found"})
	}).Methods(http.MethodGet)
	sb := newTestSandbox(t, r)

	err := sb.Process().FollowSessionCommandLogs(context.Background(), "s1", "missing", func(string) {})
	assert.True(t, IsNotFound(err))
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
