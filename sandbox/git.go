package sandbox

import (
	"context"
	"fmt"
	"net/http"
)

// Git 提供沙箱内的 Git 操作，path 为仓库在沙箱内的路径。
type Git struct {
	sandbox *Sandbox
}

// Add 暂存文件。
func (g *Git) Add(ctx context.Context, path string, files []string) error {
	req := gitAddRequest{Path: path, Files: files}
	if err := g.sandbox.client.doJSON(ctx, http.MethodPost, g.sandbox.toolboxEndpoint("git/add"), req, nil); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	return nil
}

// Branches 列出仓库分支。
func (g *Git) Branches(ctx context.Context, path string) (*ListBranchResponse, error) {
	var resp ListBranchResponse
	ep := g.sandbox.toolboxEndpoint("git/branches").queryParam("path", path)
	if err := g.sandbox.client.doJSON(ctx, http.MethodGet, ep, nil, &resp); err != nil {
		return nil, fmt.Errorf("git branches: %w", err)
	}
	return &resp, nil
}

// Clone 克隆仓库到 path，opts 可为 nil。
func (g *Git) Clone(ctx context.Context, url, path string, opts *CloneOptions) error {
	req := gitCloneRequest{URL: url, Path: path}
	if opts != nil {
		req.Branch = opts.Branch
		req.CommitID = opts.CommitID
		req.Username = opts.Username
		req.Password = opts.Password
	}
	if err := g.sandbox.client.doJSON(ctx, http.MethodPost, g.sandbox.toolboxEndpoint("git/clone"), req, nil); err != nil {
		return fmt.Errorf("git clone: %w", err)
	}
	return nil
}

// Commit 提交已暂存的修改。
func (g *Git) Commit(ctx context.Context, path, message, author, email string) error {
	req := gitCommitRequest{Path: path, Message: message, Author: author, Email: email}
	if err := g.sandbox.client.doJSON(ctx, http.MethodPost, g.sandbox.toolboxEndpoint("git/commit"), req, nil); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

// Push 推送到远端，公开仓库可不传用户名和密码。
func (g *Git) Push(ctx context.Context, path, username, password string) error {
	req := gitRepoRequest{Path: path, Username: username, Password: password}
	if err := g.sandbox.client.doJSON(ctx, http.MethodPost, g.sandbox.toolboxEndpoint("git/push"), req, nil); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

// Pull 从远端拉取。
func (g *Git) Pull(ctx context.Context, path, username, password string) error {
	req := gitRepoRequest{Path: path, Username: username, Password: password}
	if err := g.sandbox.client.doJSON(ctx, http.MethodPost, g.sandbox.toolboxEndpoint("git/pull"), req, nil); err != nil {
		return fmt.Errorf("git pull: %w", err)
	}
	return nil
}

// Status 返回仓库状态。
func (g *Git) Status(ctx context.Context, path string) (*GitStatus, error) {
	var status GitStatus
	ep := g.sandbox.toolboxEndpoint("git/status").queryParam("path", path)
	if err := g.sandbox.client.doJSON(ctx, http.MethodGet, ep, nil, &status); err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}
	return &status, nil
}
