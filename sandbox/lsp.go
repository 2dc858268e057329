package sandbox

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// LspLanguageID LSP 服务支持的语言。
type LspLanguageID string

const (
	LspLanguagePython     LspLanguageID = "python"
	LspLanguageTypeScript LspLanguageID = "typescript"
	LspLanguageJavaScript LspLanguageID = "javascript"
)

// LspServer 是沙箱内某个项目的语言服务。
type LspServer struct {
	languageID    LspLanguageID
	pathToProject string
	sandbox       *Sandbox
}

// CreateLspServer 返回项目 pathToProject 的语言服务，需调用 Start 后才能使用。
func (s *Sandbox) CreateLspServer(languageID LspLanguageID, pathToProject string) (*LspServer, error) {
	switch languageID {
	case LspLanguagePython, LspLanguageTypeScript, LspLanguageJavaScript:
	default:
		return nil, fmt.Errorf("%w: lsp language %s", ErrUnsupportedLanguage, languageID)
	}
	return &LspServer{languageID: languageID, pathToProject: pathToProject, sandbox: s}, nil
}

// fileURI 把沙箱内路径转换为 file:// URI
func fileURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}

func (l *LspServer) serverRequest() lspServerRequest {
	return lspServerRequest{LanguageID: string(l.languageID), PathToProject: l.pathToProject}
}

func (l *LspServer) documentRequest(path string) lspDocumentRequest {
	return lspDocumentRequest{LanguageID: string(l.languageID), PathToProject: l.pathToProject, URI: fileURI(path)}
}

func (l *LspServer) post(ctx context.Context, action string, body interface{}) error {
	return l.sandbox.client.doJSON(ctx, http.MethodPost, l.sandbox.toolboxEndpoint("lsp/"+action), body, nil)
}

// Start 启动语言服务。
func (l *LspServer) Start(ctx context.Context) error {
	if err := l.post(ctx, "start", l.serverRequest()); err != nil {
		return fmt.Errorf("start lsp server: %w", err)
	}
	return nil
}

// Stop 停止语言服务。
func (l *LspServer) Stop(ctx context.Context) error {
	if err := l.post(ctx, "stop", l.serverRequest()); err != nil {
		return fmt.Errorf("stop lsp server: %w", err)
	}
	return nil
}

// DidOpen 通知语言服务文件已打开。
func (l *LspServer) DidOpen(ctx context.Context, path string) error {
	if err := l.post(ctx, "did-open", l.documentRequest(path)); err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	return nil
}

// DidClose 通知语言服务文件已关闭。
func (l *LspServer) DidClose(ctx context.Context, path string) error {
	if err := l.post(ctx, "did-close", l.documentRequest(path)); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

// DocumentSymbols 返回文件中的符号。
func (l *LspServer) DocumentSymbols(ctx context.Context, path string) ([]LspSymbol, error) {
	var symbols []LspSymbol
	ep := l.sandbox.toolboxEndpoint("lsp/document-symbols").
		queryParam("languageId", string(l.languageID)).
		queryParam("pathToProject", l.pathToProject).
		queryParam("uri", fileURI(path))
	if err := l.sandbox.client.doJSON(ctx, http.MethodGet, ep, nil, &symbols); err != nil {
		return nil, fmt.Errorf("get symbols from document: %w", err)
	}
	return symbols, nil
}

// WorkspaceSymbols 在整个项目中按名称搜索符号。
func (l *LspServer) WorkspaceSymbols(ctx context.Context, query string) ([]LspSymbol, error) {
	var symbols []LspSymbol
	ep := l.sandbox.toolboxEndpoint("lsp/workspace-symbols").
		queryParam("languageId", string(l.languageID)).
		queryParam("pathToProject", l.pathToProject).
		queryParam("query", query)
	if err := l.sandbox.client.doJSON(ctx, http.MethodGet, ep, nil, &symbols); err != nil {
		return nil, fmt.Errorf("get symbols from workspace: %w", err)
	}
	return symbols, nil
}

// Completions 返回文件中 position 处的补全建议。
func (l *LspServer) Completions(ctx context.Context, path string, position Position) (*CompletionList, error) {
	var list CompletionList
	req := lspCompletionParams{
		LanguageID:    string(l.languageID),
		PathToProject: l.pathToProject,
		URI:           fileURI(path),
		Position:      position,
	}
	if err := l.sandbox.client.doJSON(ctx, http.MethodPost, l.sandbox.toolboxEndpoint("lsp/completions"), req, &list); err != nil {
		return nil, fmt.Errorf("get completions: %w", err)
	}
	return &list, nil
}
