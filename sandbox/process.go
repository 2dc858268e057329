package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daytonaio/go-sdk/internal/clientv2"
	"github.com/daytonaio/go-sdk/internal/logstream"
)

// asyncCommandLookupDelay 是异步命令没有返回 ID 时，查询会话命令前的等待时间
const asyncCommandLookupDelay = 100 * time.Millisecond

// LogsOption 配置 FollowSessionCommandLogs。
type LogsOption = logstream.Option

// LogDecodeError 表示日志分片不是合法的 UTF-8。
type LogDecodeError = logstream.DecodeError

// ErrLogsCancelled 表示日志跟随被 ctx 取消。
var ErrLogsCancelled = logstream.ErrCancelled

// WithLogsPollInterval 设置没有新输出时查询退出码的间隔，默认 2 秒。
func WithLogsPollInterval(d time.Duration) LogsOption {
	return logstream.WithPollInterval(d)
}

// WithLogsExitCodeThreshold 设置连续看到退出码多少次后结束跟随，默认 2 次。
func WithLogsExitCodeThreshold(n int) LogsOption {
	return logstream.WithExitCodeThreshold(n)
}

// Process 提供沙箱内命令执行、代码执行和会话管理能力。
type Process struct {
	sandbox *Sandbox
}

// ExecOption 命令执行选项。
type ExecOption func(*execOpts)

type execOpts struct {
	cwd     string
	timeout time.Duration
}

// WithCwd 设置命令的工作目录，默认为沙箱根目录。
func WithCwd(cwd string) ExecOption {
	return func(o *execOpts) { o.cwd = cwd }
}

// WithExecTimeout 设置命令在沙箱内的最长执行时间，0 表示不限制。
func WithExecTimeout(timeout time.Duration) ExecOption {
	return func(o *execOpts) { o.timeout = timeout }
}

// Exec 在沙箱内执行 shell 命令并等待其结束。
func (p *Process) Exec(ctx context.Context, command string, opts ...ExecOption) (*ExecuteResponse, error) {
	o := &execOpts{}
	for _, fn := range opts {
		fn(o)
	}
	if o.timeout < 0 {
		return nil, fmt.Errorf("%w: timeout must be a non-negative duration", ErrInvalidParams)
	}

	req := executeRequest{Command: command}
	if o.cwd != "" {
		req.Cwd = &o.cwd
	}
	if o.timeout > 0 {
		secs := int((o.timeout + time.Second - 1) / time.Second)
		req.Timeout = &secs
	}

	var resp ExecuteResponse
	if err := p.sandbox.client.doJSON(ctx, http.MethodPost, p.sandbox.toolboxEndpoint("process/execute"), req, &resp); err != nil {
		return nil, fmt.Errorf("execute command: %w", err)
	}
	return &resp, nil
}

// CodeRun 使用沙箱创建时选择的语言执行一段代码。
func (p *Process) CodeRun(ctx context.Context, code string, params *CodeRunParams, opts ...ExecOption) (*ExecuteResponse, error) {
	return p.Exec(ctx, p.sandbox.toolbox.runCommand(code, params), opts...)
}

// CreateSession 创建一个长期运行的后台会话，会话中的命令共享 shell 状态。
func (p *Process) CreateSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidParams)
	}
	if err := p.sandbox.client.doJSON(ctx, http.MethodPost, p.sandbox.toolboxEndpoint("process/session"), createSessionRequest{SessionID: sessionID}, nil); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession 返回会话及其执行过的命令。
func (p *Process) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	ep := p.sandbox.toolboxEndpoint("process/session/{sessionId}").param("sessionId", sessionID)
	if err := p.sandbox.client.doJSON(ctx, http.MethodGet, ep, nil, &session); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// GetSessionCommand 返回会话中的一条命令，命令仍在运行时 ExitCode 为 nil。
func (p *Process) GetSessionCommand(ctx context.Context, sessionID, commandID string) (*Command, error) {
	var command Command
	ep := p.sandbox.toolboxEndpoint("process/session/{sessionId}/command/{commandId}").
		param("sessionId", sessionID).
		param("commandId", commandID)
	if err := p.sandbox.client.doJSON(ctx, http.MethodGet, ep, nil, &command); err != nil {
		return nil, fmt.Errorf("get session command: %w", err)
	}
	return &command, nil
}

// ListSessions 列出沙箱内的全部会话。
func (p *Process) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := p.sandbox.client.doJSON(ctx, http.MethodGet, p.sandbox.toolboxEndpoint("process/session"), nil, &sessions); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession 删除会话。
func (p *Process) DeleteSession(ctx context.Context, sessionID string) error {
	ep := p.sandbox.toolboxEndpoint("process/session/{sessionId}").param("sessionId", sessionID)
	if err := p.sandbox.client.doJSON(ctx, http.MethodDelete, ep, nil, nil); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ExecuteSessionCommand 在会话中执行命令，timeout 为 0 表示不限制。
//
// 异步执行时服务端可能不返回命令 ID，此时会在会话的命令列表中从后往前查找命令文本相同的命令；
// 同一会话中并发执行相同的命令时无法区分，找不到时返回 ErrCommandNotFound。
func (p *Process) ExecuteSessionCommand(ctx context.Context, sessionID string, req SessionExecuteRequest, timeout time.Duration) (*SessionExecuteResponse, error) {
	if err := defaultValidator.Validate(&req); err != nil {
		return nil, err
	}
	ctx, cancel, err := withTimeout(ctx, timeout)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var resp SessionExecuteResponse
	ep := p.sandbox.toolboxEndpoint("process/session/{sessionId}/exec").param("sessionId", sessionID)
	if err = p.sandbox.client.doJSON(ctx, http.MethodPost, ep, req, &resp); err != nil {
		return nil, fmt.Errorf("execute session command: %w", err)
	}
	if !req.Async || resp.CmdID != nil {
		return &resp, nil
	}

	timer := time.NewTimer(asyncCommandLookupDelay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil, fmt.Errorf("execute session command: %w", ctx.Err())
	case <-timer.C:
	}

	session, err := p.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("execute session command: %w", err)
	}
	for i := len(session.Commands) - 1; i >= 0; i-- {
		cmd := session.Commands[i]
		if cmd.Command == req.Command {
			id := cmd.ID
			return &SessionExecuteResponse{CmdID: &id, ExitCode: cmd.ExitCode}, nil
		}
	}
	return nil, fmt.Errorf("execute session command: %w: %q in session %s", ErrCommandNotFound, req.Command, sessionID)
}

func (p *Process) commandLogsEndpoint(sessionID, commandID string) *endpoint {
	return p.sandbox.toolboxEndpoint("process/session/{sessionId}/command/{commandId}/logs").
		param("sessionId", sessionID).
		param("commandId", commandID)
}

// GetSessionCommandLogs 返回会话命令当前的全部输出（stdout 和 stderr）。
func (p *Process) GetSessionCommandLogs(ctx context.Context, sessionID, commandID string) (string, error) {
	data, err := p.sandbox.client.doBytes(ctx, http.MethodGet, p.commandLogsEndpoint(sessionID, commandID))
	if err != nil {
		return "", fmt.Errorf("get session command logs: %w", err)
	}
	return string(data), nil
}

// FollowSessionCommandLogs 持续读取会话命令的输出，每收到一段就按顺序调用 onLogs。
//
// 服务端在命令结束后不一定关闭日志流，因此每隔一段时间（默认 2 秒）没有新输出时会查询一次命令的退出码，
// 连续两次看到退出码且期间没有新输出时结束。输出流正常结束或命令结束时返回 nil；
// ctx 被取消时返回的错误满足 errors.Is(err, ErrLogsCancelled)，输出不是合法 UTF-8 时返回 *LogDecodeError。
func (p *Process) FollowSessionCommandLogs(ctx context.Context, sessionID, commandID string, onLogs func(chunk string), opts ...LogsOption) error {
	ep := p.commandLogsEndpoint(sessionID, commandID).queryParam("follow", true)
	// 流式读取不能重试，否则会重复输出
	resp, err := p.sandbox.client.do(clientv2.WithoutRetry(ctx), http.MethodGet, ep, nil)
	if err != nil {
		return fmt.Errorf("get session command logs: %w", err)
	}

	status := func(ctx context.Context) (*int, error) {
		cmd, err := p.GetSessionCommand(ctx, sessionID, commandID)
		if err != nil {
			return nil, err
		}
		return cmd.ExitCode, nil
	}
	logger := p.sandbox.logger().WithFields(logrus.Fields{
		"session": sessionID,
		"command": commandID,
	})
	opts = append([]LogsOption{logstream.WithLogger(logger)}, opts...)

	if err = logstream.Follow(ctx, logstream.NewReaderSource(resp.Body, 0), status, onLogs, opts...); err != nil {
		return fmt.Errorf("follow session command logs: %w", err)
	}
	return nil
}
