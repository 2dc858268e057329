package sandbox

import (
	"encoding/json"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// 沙箱相关
// ---------------------------------------------------------------------------

// SandboxState 沙箱状态。
type SandboxState string

// 沙箱状态常量。
const (
	StateCreating     SandboxState = "creating"
	StateRestoring    SandboxState = "restoring"
	StateDestroyed    SandboxState = "destroyed"
	StateDestroying   SandboxState = "destroying"
	StateStarted      SandboxState = "started"
	StateStopped      SandboxState = "stopped"
	StateStarting     SandboxState = "starting"
	StateStopping     SandboxState = "stopping"
	StateResizing     SandboxState = "resizing"
	StateError        SandboxState = "error"
	StateUnknown      SandboxState = "unknown"
	StatePullingImage SandboxState = "pulling_image"
)

// labelCodeToolboxLanguage 记录沙箱创建时选择的代码语言
const labelCodeToolboxLanguage = "code-toolbox-language"

// Resources 创建沙箱时申请的资源。
type Resources struct {
	// CPU 核数。
	CPU int `json:"cpu,omitempty" validate:"gte=0"`
	// Memory 内存（GB）。
	Memory int `json:"memory,omitempty" validate:"gte=0"`
	// Disk 磁盘（GB）。
	Disk int `json:"disk,omitempty" validate:"gte=0"`
	// GPU 数量。
	GPU int `json:"gpu,omitempty" validate:"gte=0"`
}

// CreateParams 创建沙箱的请求参数。
type CreateParams struct {
	// Language 代码语言，决定 Process.CodeRun 使用的运行时，默认 python。
	Language CodeLanguage

	// ID 沙箱 ID，可选，默认随机生成。
	ID string

	// Name 沙箱名称，可选，默认与 ID 相同。
	Name string

	// Image 镜像，可选。
	Image string

	// OSUser 沙箱内的操作系统用户，可选，默认 daytona。
	OSUser string

	// EnvVars 环境变量，可选。
	EnvVars map[string]string

	// Labels 标签，可选。
	Labels map[string]string

	// Public 是否公开访问，可选。
	Public *bool

	// Target 区域，可选，默认使用客户端配置。
	Target Target `validate:"omitempty,oneof=eu us asia"`

	// Resources 资源，可选。
	Resources *Resources

	// Timeout 等待沙箱启动的最长时间，0 表示不限制。
	Timeout time.Duration `validate:"gte=0"`

	// AutoStopInterval 无活动后自动停止的分钟数，0 表示不自动停止。
	AutoStopInterval *int `validate:"omitempty,gte=0"`
}

type createWorkspaceRequest struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Image            string            `json:"image,omitempty"`
	User             string            `json:"user"`
	Env              map[string]string `json:"env"`
	Labels           map[string]string `json:"labels,omitempty"`
	Public           *bool             `json:"public,omitempty"`
	Target           string            `json:"target"`
	CPU              int               `json:"cpu,omitempty"`
	Memory           int               `json:"memory,omitempty"`
	Disk             int               `json:"disk,omitempty"`
	GPU              int               `json:"gpu,omitempty"`
	AutoStopInterval *int              `json:"autoStopInterval,omitempty"`
}

// SandboxInstance 是 API 返回的沙箱原始数据。
type SandboxInstance struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	Image  string               `json:"image"`
	User   string               `json:"user"`
	Env    map[string]string    `json:"env"`
	Labels map[string]string    `json:"labels"`
	Public bool                 `json:"public"`
	Target string               `json:"target"`
	Info   *SandboxInstanceInfo `json:"info,omitempty"`
}

// SandboxInstanceInfo 是沙箱的运行时信息，状态等字段以 JSON 字符串形式放在 ProviderMetadata 中。
type SandboxInstanceInfo struct {
	Name             string `json:"name"`
	Created          string `json:"created"`
	IsRunning        bool   `json:"isRunning"`
	ProviderMetadata string `json:"providerMetadata"`
}

// SandboxResources 沙箱实际分配的资源。
type SandboxResources struct {
	CPU    string
	GPU    string
	Memory string
	Disk   string
}

// SandboxInfo 沙箱详细信息。
type SandboxInfo struct {
	ID                     string
	Name                   string
	Image                  string
	User                   string
	Env                    map[string]string
	Labels                 map[string]string
	Public                 bool
	Target                 Target
	Resources              SandboxResources
	State                  SandboxState
	ErrorReason            string
	SnapshotState          string
	SnapshotStateCreatedAt *time.Time
	NodeDomain             string
	Region                 string
	Class                  string
	UpdatedAt              string
	LastSnapshot           string
	AutoStopInterval       int
	Created                string

	// ProviderMetadata 原始元数据，上面的字段都从中解析得到。
	ProviderMetadata string
}

type providerMetadata map[string]json.RawMessage

func parseProviderMetadata(instance *SandboxInstance) providerMetadata {
	md := providerMetadata{}
	if instance == nil || instance.Info == nil || instance.Info.ProviderMetadata == "" {
		return md
	}
	// 元数据格式不合法时按空处理
	_ = json.Unmarshal([]byte(instance.Info.ProviderMetadata), &md)
	return md
}

// str 读取字符串或数字字段，不存在时返回 def
func (md providerMetadata) str(key, def string) string {
	raw, ok := md[key]
	if !ok {
		return def
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return def
	}
	return text
}

func (md providerMetadata) int(key string) int {
	raw, ok := md[key]
	if !ok {
		return 0
	}
	var n int
	if json.Unmarshal(raw, &n) == nil {
		return n
	}
	return 0
}

func (md providerMetadata) resources() providerMetadata {
	raw, ok := md["resources"]
	if !ok {
		return md
	}
	res := providerMetadata{}
	if json.Unmarshal(raw, &res) != nil {
		return md
	}
	return res
}

func sandboxInfoFromInstance(instance *SandboxInstance) *SandboxInfo {
	md := parseProviderMetadata(instance)
	res := md.resources()

	info := &SandboxInfo{
		ID:     instance.ID,
		Name:   instance.Name,
		Image:  instance.Image,
		User:   instance.User,
		Env:    instance.Env,
		Labels: instance.Labels,
		Public: instance.Public,
		Target: Target(instance.Target),
		Resources: SandboxResources{
			CPU:    res.str("cpu", "1"),
			GPU:    res.str("gpu", ""),
			Memory: res.str("memory", "2") + "Gi",
			Disk:   res.str("disk", "10") + "Gi",
		},
		State:            SandboxState(md.str("state", "")),
		ErrorReason:      md.str("errorReason", ""),
		SnapshotState:    md.str("snapshotState", ""),
		NodeDomain:       md.str("nodeDomain", ""),
		Region:           md.str("region", ""),
		Class:            md.str("class", ""),
		UpdatedAt:        md.str("updatedAt", ""),
		LastSnapshot:     md.str("lastSnapshot", ""),
		AutoStopInterval: md.int("autoStopInterval"),
	}
	if info.Env == nil {
		info.Env = map[string]string{}
	}
	if info.Labels == nil {
		info.Labels = map[string]string{}
	}
	if createdAt := md.str("snapshotStateCreatedAt", ""); createdAt != "" {
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			info.SnapshotStateCreatedAt = &t
		}
	}
	if instance.Info != nil {
		info.Created = instance.Info.Created
		info.ProviderMetadata = instance.Info.ProviderMetadata
	}
	return info
}

type projectDirResponse struct {
	Dir string `json:"dir"`
}

type labelsRequest struct {
	Labels map[string]string `json:"labels"`
}

// ---------------------------------------------------------------------------
// 进程相关
// ---------------------------------------------------------------------------

// ExecuteResponse 命令执行结果。
type ExecuteResponse struct {
	ExitCode int    `json:"exitCode"`
	Result   string `json:"result"`
}

type executeRequest struct {
	Command string  `json:"command"`
	Cwd     *string `json:"cwd,omitempty"`
	Timeout *int    `json:"timeout,omitempty"`
}

// Session 会话，会话中的命令共享 shell 状态。
type Session struct {
	SessionID string    `json:"sessionId"`
	Commands  []Command `json:"commands"`
}

// Command 会话中执行过的命令。
type Command struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	// ExitCode 命令仍在运行时为 nil。
	ExitCode *int `json:"exitCode,omitempty"`
}

type createSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// SessionExecuteRequest 在会话中执行命令的请求。
type SessionExecuteRequest struct {
	Command string `json:"command" validate:"required"`
	// Async 为 true 时立即返回，输出通过日志接口获取。
	Async bool `json:"async,omitempty"`
}

// SessionExecuteResponse 会话命令的执行结果，异步执行时只有 CmdID。
type SessionExecuteResponse struct {
	CmdID    *string `json:"cmdId,omitempty"`
	Output   *string `json:"output,omitempty"`
	ExitCode *int    `json:"exitCode,omitempty"`
}

// CodeRunParams 代码执行参数。
type CodeRunParams struct {
	// Argv 命令行参数。
	Argv []string
	// Env 环境变量。
	Env map[string]string
}

// ---------------------------------------------------------------------------
// 文件系统相关
// ---------------------------------------------------------------------------

// FileInfo 文件或目录的元信息。
type FileInfo struct {
	Name        string `json:"name"`
	IsDir       bool   `json:"isDir"`
	Size        int64  `json:"size"`
	Mode        string `json:"mode"`
	ModTime     string `json:"modTime"`
	Permissions string `json:"permissions"`
	Owner       string `json:"owner"`
	Group       string `json:"group"`
}

// Match 文件内容搜索的匹配项。
type Match struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

type replaceRequest struct {
	Files    []string `json:"files"`
	Pattern  string   `json:"pattern"`
	NewValue string   `json:"newValue"`
}

// ReplaceResult 单个文件的替换结果。
type ReplaceResult struct {
	File    string `json:"file"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SearchFilesResponse 文件名搜索结果。
type SearchFilesResponse struct {
	Files []string `json:"files"`
}

// FilePermissionsParams 文件权限参数，空字段表示不修改。
type FilePermissionsParams struct {
	Owner string
	Group string
	// Mode 八进制权限，如 "755"。
	Mode string `validate:"omitempty,numeric,max=4"`
}

// FileUpload 批量上传的单个文件。
type FileUpload struct {
	Path    string `validate:"required"`
	Content []byte
}

// ---------------------------------------------------------------------------
// Git 相关
// ---------------------------------------------------------------------------

// GitStatus 仓库状态。
type GitStatus struct {
	CurrentBranch   string       `json:"currentBranch"`
	FileStatus      []FileStatus `json:"fileStatus"`
	Ahead           int          `json:"ahead"`
	Behind          int          `json:"behind"`
	BranchPublished bool         `json:"branchPublished"`
}

// FileStatus 单个文件的 git 状态。
type FileStatus struct {
	Name     string `json:"name"`
	Staging  string `json:"staging"`
	Worktree string `json:"worktree"`
	Extra    string `json:"extra"`
}

// ListBranchResponse 分支列表。
type ListBranchResponse struct {
	Branches []string `json:"branches"`
}

// CloneOptions 克隆仓库的可选参数。
type CloneOptions struct {
	Branch   string
	CommitID string
	Username string
	Password string
}

type gitAddRequest struct {
	Path  string   `json:"path"`
	Files []string `json:"files"`
}

type gitCloneRequest struct {
	URL      string `json:"url"`
	Path     string `json:"path"`
	Branch   string `json:"branch,omitempty"`
	CommitID string `json:"commit_id,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

type gitCommitRequest struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Author  string `json:"author"`
	Email   string `json:"email"`
}

type gitRepoRequest struct {
	Path     string `json:"path"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// ---------------------------------------------------------------------------
// LSP 相关
// ---------------------------------------------------------------------------

// Position 文本位置，行和列都从 0 开始。
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range 文本区间。
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// LspLocation 符号位置。
type LspLocation struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// LspSymbol 文档或工作区中的符号。
type LspSymbol struct {
	Kind     int         `json:"kind"`
	Location LspLocation `json:"location"`
	Name     string      `json:"name"`
}

// CompletionItem 补全项。
type CompletionItem struct {
	Label         string          `json:"label"`
	Kind          *int            `json:"kind,omitempty"`
	Detail        string          `json:"detail,omitempty"`
	Documentation json.RawMessage `json:"documentation,omitempty"`
	SortText      string          `json:"sortText,omitempty"`
	FilterText    string          `json:"filterText,omitempty"`
	InsertText    string          `json:"insertText,omitempty"`
}

// CompletionList 补全结果。
type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

type lspServerRequest struct {
	LanguageID    string `json:"languageId"`
	PathToProject string `json:"pathToProject"`
}

type lspDocumentRequest struct {
	LanguageID    string `json:"languageId"`
	PathToProject string `json:"pathToProject"`
	URI           string `json:"uri"`
}

type lspCompletionParams struct {
	LanguageID    string   `json:"languageId"`
	PathToProject string   `json:"pathToProject"`
	URI           string   `json:"uri"`
	Position      Position `json:"position"`
}
