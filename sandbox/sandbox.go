package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// removeTimeout 是创建失败后清理沙箱的最长时间
const removeTimeout = 30 * time.Second

// defaultOSUser 是未指定 OSUser 时沙箱内的默认用户
const defaultOSUser = "daytona"

// Sandbox 表示一个远程沙箱。
// 持有客户端引用，用于执行生命周期操作和 toolbox 调用。
type Sandbox struct {
	id       string
	client   *Client
	language CodeLanguage
	toolbox  codeToolbox

	mu       sync.RWMutex
	instance *SandboxInstance

	// 子模块（懒初始化）
	processOnce sync.Once
	process     *Process

	fsOnce sync.Once
	fs     *FileSystem

	gitOnce sync.Once
	git     *Git
}

func newSandbox(c *Client, instance *SandboxInstance, language CodeLanguage) (*Sandbox, error) {
	toolbox, err := newCodeToolbox(language)
	if err != nil {
		return nil, err
	}
	return &Sandbox{
		id:       instance.ID,
		client:   c,
		language: language,
		toolbox:  toolbox,
		instance: instance,
	}, nil
}

// ID 返回沙箱 ID。
func (s *Sandbox) ID() string { return s.id }

// Language 返回沙箱代码执行使用的语言。
func (s *Sandbox) Language() CodeLanguage { return s.language }

// Instance 返回最近一次从 API 获取的沙箱原始数据。
func (s *Sandbox) Instance() *SandboxInstance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instance
}

func (s *Sandbox) setInstance(instance *SandboxInstance) {
	s.mu.Lock()
	s.instance = instance
	s.mu.Unlock()
}

func (s *Sandbox) logger() logrus.FieldLogger {
	return s.client.logger.WithField("sandbox", s.id)
}

func (s *Sandbox) workspaceEndpoint(path string) *endpoint {
	return newEndpoint("/workspace/{workspaceId}"+path).param("workspaceId", s.id)
}

func (s *Sandbox) toolboxEndpoint(path string) *endpoint {
	return newEndpoint("/toolbox/{workspaceId}/toolbox/"+path).param("workspaceId", s.id)
}

// Create 创建一个新的沙箱并等待其启动。params 为 nil 时使用 python 语言和默认配置。
// 沙箱已创建但未能启动时会尽力删除该沙箱。
func (c *Client) Create(ctx context.Context, params *CreateParams) (*Sandbox, error) {
	if params == nil {
		params = &CreateParams{}
	}
	language, err := ParseCodeLanguage(string(params.Language))
	if err != nil {
		return nil, err
	}
	if params.Timeout < 0 {
		return nil, fmt.Errorf("%w: timeout must be a non-negative duration", ErrInvalidParams)
	}
	if params.AutoStopInterval != nil && *params.AutoStopInterval < 0 {
		return nil, fmt.Errorf("%w: auto stop interval must be a non-negative integer", ErrInvalidParams)
	}
	if err = defaultValidator.Validate(params); err != nil {
		return nil, err
	}

	req := createWorkspaceRequest{
		ID:               params.ID,
		Name:             params.Name,
		Image:            params.Image,
		User:             params.OSUser,
		Env:              params.EnvVars,
		Public:           params.Public,
		Target:           string(params.Target),
		AutoStopInterval: params.AutoStopInterval,
	}
	if req.ID == "" {
		req.ID = "sandbox-" + uuid.NewString()[:8]
	}
	if req.Name == "" {
		req.Name = req.ID
	}
	if req.User == "" {
		req.User = defaultOSUser
	}
	if req.Env == nil {
		req.Env = map[string]string{}
	}
	if req.Target == "" {
		req.Target = string(c.config.Target)
	}
	req.Labels = make(map[string]string, len(params.Labels)+1)
	for k, v := range params.Labels {
		req.Labels[k] = v
	}
	req.Labels[labelCodeToolboxLanguage] = string(language)
	if r := params.Resources; r != nil {
		req.CPU, req.Memory, req.Disk, req.GPU = r.CPU, r.Memory, r.Disk, r.GPU
	}

	var instance SandboxInstance
	if err = c.doJSON(ctx, http.MethodPost, newEndpoint("/workspace"), req, &instance); err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}
	if instance.ID == "" {
		instance.ID = req.ID
	}
	sb, err := newSandbox(c, &instance, language)
	if err != nil {
		return nil, err
	}

	waitCtx := ctx
	if params.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, params.Timeout)
		defer cancel()
	}
	if _, err = sb.WaitForStart(waitCtx); err != nil {
		c.removeQuietly(ctx, sb.id)
		if params.Timeout > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("failed to create and start sandbox within %g seconds: %w", params.Timeout.Seconds(), err)
		}
		return nil, err
	}
	return sb, nil
}

// removeQuietly 尽力删除沙箱，不受 ctx 取消影响
func (c *Client) removeQuietly(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), removeTimeout)
	defer cancel()
	ep := newEndpoint("/workspace/{workspaceId}").param("workspaceId", id).queryParam("force", true)
	resp, err := c.do(ctx, http.MethodDelete, ep, nil)
	if err != nil {
		c.logger.WithField("sandbox", id).WithError(err).Warn("failed to remove sandbox after create failure")
		return
	}
	resp.Body.Close()
}

// Get 根据 ID 获取沙箱，代码语言由沙箱的 code-toolbox-language 标签决定。
func (c *Client) Get(ctx context.Context, sandboxID string) (*Sandbox, error) {
	if sandboxID == "" {
		return nil, fmt.Errorf("%w: sandbox id is required", ErrInvalidParams)
	}
	var instance SandboxInstance
	ep := newEndpoint("/workspace/{workspaceId}").param("workspaceId", sandboxID)
	if err := c.doJSON(ctx, http.MethodGet, ep, nil, &instance); err != nil {
		return nil, fmt.Errorf("get sandbox %s: %w", sandboxID, err)
	}
	return c.sandboxFromInstance(&instance)
}

// GetCurrentSandbox 等同于 Get。
func (c *Client) GetCurrentSandbox(ctx context.Context, sandboxID string) (*Sandbox, error) {
	return c.Get(ctx, sandboxID)
}

// List 列出当前账号下的全部沙箱。
func (c *Client) List(ctx context.Context) ([]*Sandbox, error) {
	var instances []SandboxInstance
	if err := c.doJSON(ctx, http.MethodGet, newEndpoint("/workspace"), nil, &instances); err != nil {
		return nil, fmt.Errorf("list sandboxes: %w", err)
	}
	sandboxes := make([]*Sandbox, 0, len(instances))
	for i := range instances {
		sb, err := c.sandboxFromInstance(&instances[i])
		if err != nil {
			return nil, err
		}
		sandboxes = append(sandboxes, sb)
	}
	return sandboxes, nil
}

func (c *Client) sandboxFromInstance(instance *SandboxInstance) (*Sandbox, error) {
	label := instance.Labels[labelCodeToolboxLanguage]
	language, err := ParseCodeLanguage(label)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"sandbox":  instance.ID,
			"language": label,
		}).Warn("invalid code-toolbox-language label, falling back to python")
		language = CodeLanguagePython
	}
	return newSandbox(c, instance, language)
}

// Start 启动沙箱并等待其进入 started 状态，timeout 为 0 表示不限制。
func (c *Client) Start(ctx context.Context, sb *Sandbox, timeout time.Duration) error {
	return sb.Start(ctx, timeout)
}

// Stop 停止沙箱并等待其进入 stopped 状态，timeout 为 0 表示不限制。
func (c *Client) Stop(ctx context.Context, sb *Sandbox, timeout time.Duration) error {
	return sb.Stop(ctx, timeout)
}

// Remove 强制删除沙箱，timeout 为 0 表示不限制。
func (c *Client) Remove(ctx context.Context, sb *Sandbox, timeout time.Duration) error {
	ctx, cancel, err := withTimeout(ctx, timeout)
	if err != nil {
		return err
	}
	defer cancel()
	resp, err := c.do(ctx, http.MethodDelete, sb.workspaceEndpoint("").queryParam("force", true), nil)
	if err != nil {
		return fmt.Errorf("remove sandbox %s: %w", sb.id, err)
	}
	resp.Body.Close()
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if timeout < 0 {
		return nil, nil, fmt.Errorf("%w: timeout must be a non-negative duration", ErrInvalidParams)
	}
	if timeout == 0 {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}

// Info 从 API 获取沙箱最新信息。
func (s *Sandbox) Info(ctx context.Context) (*SandboxInfo, error) {
	var instance SandboxInstance
	if err := s.client.doJSON(ctx, http.MethodGet, s.workspaceEndpoint(""), nil, &instance); err != nil {
		return nil, fmt.Errorf("get sandbox %s: %w", s.id, err)
	}
	s.setInstance(&instance)
	return sandboxInfoFromInstance(&instance), nil
}

// GetRootDir 返回沙箱内项目的根目录。
func (s *Sandbox) GetRootDir(ctx context.Context) (string, error) {
	var resp projectDirResponse
	if err := s.client.doJSON(ctx, http.MethodGet, s.toolboxEndpoint("project-dir"), nil, &resp); err != nil {
		return "", fmt.Errorf("get root dir: %w", err)
	}
	return resp.Dir, nil
}

// SetLabels 用 labels 替换沙箱的全部标签，返回替换后的标签。
func (s *Sandbox) SetLabels(ctx context.Context, labels map[string]string) (map[string]string, error) {
	if labels == nil {
		labels = map[string]string{}
	}
	var resp labelsRequest
	if err := s.client.doJSON(ctx, http.MethodPut, s.workspaceEndpoint("/labels"), labelsRequest{Labels: labels}, &resp); err != nil {
		return nil, fmt.Errorf("set labels: %w", err)
	}
	if resp.Labels == nil {
		resp.Labels = labels
	}
	return resp.Labels, nil
}

// Start 启动沙箱并等待其进入 started 状态，timeout 为 0 表示不限制。
func (s *Sandbox) Start(ctx context.Context, timeout time.Duration, opts ...PollOption) error {
	ctx, cancel, err := withTimeout(ctx, timeout)
	if err != nil {
		return err
	}
	defer cancel()

	resp, err := s.client.do(ctx, http.MethodPost, s.workspaceEndpoint("/start"), nil)
	if err != nil {
		return fmt.Errorf("start sandbox %s: %w", s.id, err)
	}
	resp.Body.Close()

	if _, err = s.WaitForStart(ctx, opts...); err != nil {
		if timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("sandbox %s failed to become ready within %v: %w", s.id, timeout, err)
		}
		return err
	}
	return nil
}

// Stop 停止沙箱并等待其进入 stopped 状态，timeout 为 0 表示不限制。
func (s *Sandbox) Stop(ctx context.Context, timeout time.Duration, opts ...PollOption) error {
	ctx, cancel, err := withTimeout(ctx, timeout)
	if err != nil {
		return err
	}
	defer cancel()

	resp, err := s.client.do(ctx, http.MethodPost, s.workspaceEndpoint("/stop"), nil)
	if err != nil {
		return fmt.Errorf("stop sandbox %s: %w", s.id, err)
	}
	resp.Body.Close()

	if _, err = s.WaitForStop(ctx, opts...); err != nil {
		if timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("sandbox %s failed to stop within %v: %w", s.id, timeout, err)
		}
		return err
	}
	return nil
}

// WaitForStart 轮询 Info 直到沙箱状态变为 started 或上下文被取消。
// 默认轮询间隔为 100 毫秒，沙箱进入 error 状态时返回 ErrSandboxError。
func (s *Sandbox) WaitForStart(ctx context.Context, opts ...PollOption) (*SandboxInfo, error) {
	return s.waitForState(ctx, StateStarted, opts)
}

// WaitForStop 轮询 Info 直到沙箱状态变为 stopped 或上下文被取消。
func (s *Sandbox) WaitForStop(ctx context.Context, opts ...PollOption) (*SandboxInfo, error) {
	return s.waitForState(ctx, StateStopped, opts)
}

func (s *Sandbox) waitForState(ctx context.Context, want SandboxState, opts []PollOption) (*SandboxInfo, error) {
	o := applyPollOpts(defaultStatePollInterval, opts)
	return pollLoop(ctx, o, func() (bool, *SandboxInfo, error) {
		info, err := s.Info(ctx)
		if err != nil {
			return false, nil, err
		}
		switch info.State {
		case want:
			return true, info, nil
		case StateError:
			if info.ErrorReason != "" {
				return false, nil, fmt.Errorf("%w: sandbox %s failed to reach %s: %s", ErrSandboxError, s.id, want, info.ErrorReason)
			}
			return false, nil, fmt.Errorf("%w: sandbox %s failed to reach %s", ErrSandboxError, s.id, want)
		}
		s.logger().WithField("state", info.State).Debugf("waiting for sandbox to be %s", want)
		return false, nil, nil
	})
}

// SetAutostopInterval 设置沙箱无活动后自动停止的分钟数，0 表示不自动停止。
func (s *Sandbox) SetAutostopInterval(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("%w: auto stop interval must be a non-negative integer", ErrInvalidParams)
	}
	ep := s.workspaceEndpoint("/autostop/{interval}").param("interval", minutes)
	resp, err := s.client.do(ctx, http.MethodPost, ep, nil)
	if err != nil {
		return fmt.Errorf("set auto stop interval: %w", err)
	}
	resp.Body.Close()
	return nil
}

// GetPreviewLink 返回访问沙箱指定端口的外部链接。
// 格式: https://{port}-{sandboxID}.{nodeDomain}
func (s *Sandbox) GetPreviewLink(port int) (string, error) {
	info := sandboxInfoFromInstance(s.Instance())
	if info.NodeDomain == "" {
		return "", ErrNodeDomainMissing
	}
	return fmt.Sprintf("https://%d-%s.%s", port, s.id, info.NodeDomain), nil
}

// Process 返回进程与会话操作接口。
func (s *Sandbox) Process() *Process {
	s.processOnce.Do(func() {
		s.process = &Process{sandbox: s}
	})
	return s.process
}

// FS 返回文件系统操作接口。
func (s *Sandbox) FS() *FileSystem {
	s.fsOnce.Do(func() {
		s.fs = &FileSystem{sandbox: s}
	})
	return s.fs
}

// Git 返回 Git 操作接口。
func (s *Sandbox) Git() *Git {
	s.gitOnce.Do(func() {
		s.git = &Git{sandbox: s}
	})
	return s.git
}
