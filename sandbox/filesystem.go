package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/daytonaio/go-sdk/internal/clientv2"
)

// uploadConcurrency 是 UploadFiles 同时进行的上传数
const uploadConcurrency = 8

// FileSystem 提供沙箱内的文件操作。
type FileSystem struct {
	sandbox *Sandbox
}

func (fs *FileSystem) client() *Client {
	return fs.sandbox.client
}

// CreateFolder 创建目录，mode 为八进制权限字符串，如 "755"。
func (fs *FileSystem) CreateFolder(ctx context.Context, path, mode string) error {
	ep := fs.sandbox.toolboxEndpoint("files/folder").
		queryParam("path", path).
		queryParam("mode", mode)
	if err := fs.client().doJSON(ctx, http.MethodPost, ep, nil, nil); err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	return nil
}

// DeleteFile 删除文件或目录。
func (fs *FileSystem) DeleteFile(ctx context.Context, path string) error {
	ep := fs.sandbox.toolboxEndpoint("files").queryParam("path", path)
	if err := fs.client().doJSON(ctx, http.MethodDelete, ep, nil, nil); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// DownloadFile 返回文件内容。
func (fs *FileSystem) DownloadFile(ctx context.Context, path string) ([]byte, error) {
	data, err := fs.client().doBytes(ctx, http.MethodGet, fs.sandbox.toolboxEndpoint("files/download").queryParam("path", path))
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	return data, nil
}

// FindFiles 在 path 下的文件内容中搜索 pattern。
func (fs *FileSystem) FindFiles(ctx context.Context, path, pattern string) ([]Match, error) {
	var matches []Match
	ep := fs.sandbox.toolboxEndpoint("files/find").
		queryParam("path", path).
		queryParam("pattern", pattern)
	if err := fs.client().doJSON(ctx, http.MethodGet, ep, nil, &matches); err != nil {
		return nil, fmt.Errorf("find files: %w", err)
	}
	return matches, nil
}

// GetFileDetails 返回文件或目录的元信息。
func (fs *FileSystem) GetFileDetails(ctx context.Context, path string) (*FileInfo, error) {
	var info FileInfo
	if err := fs.client().doJSON(ctx, http.MethodGet, fs.sandbox.toolboxEndpoint("files/info").queryParam("path", path), nil, &info); err != nil {
		return nil, fmt.Errorf("get file details: %w", err)
	}
	return &info, nil
}

// ListFiles 列出目录内容。
func (fs *FileSystem) ListFiles(ctx context.Context, path string) ([]FileInfo, error) {
	var files []FileInfo
	if err := fs.client().doJSON(ctx, http.MethodGet, fs.sandbox.toolboxEndpoint("files").queryParam("path", path), nil, &files); err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// MoveFiles 移动或重命名文件。
func (fs *FileSystem) MoveFiles(ctx context.Context, source, destination string) error {
	ep := fs.sandbox.toolboxEndpoint("files/move").
		queryParam("source", source).
		queryParam("destination", destination)
	if err := fs.client().doJSON(ctx, http.MethodPost, ep, nil, nil); err != nil {
		return fmt.Errorf("move files: %w", err)
	}
	return nil
}

// ReplaceInFiles 在多个文件中把 pattern 替换为 newValue。
func (fs *FileSystem) ReplaceInFiles(ctx context.Context, files []string, pattern, newValue string) ([]ReplaceResult, error) {
	var results []ReplaceResult
	req := replaceRequest{Files: files, Pattern: pattern, NewValue: newValue}
	if err := fs.client().doJSON(ctx, http.MethodPost, fs.sandbox.toolboxEndpoint("files/replace"), req, &results); err != nil {
		return nil, fmt.Errorf("replace in files: %w", err)
	}
	return results, nil
}

// SearchFiles 在 path 下按文件名 glob 搜索。
func (fs *FileSystem) SearchFiles(ctx context.Context, path, pattern string) (*SearchFilesResponse, error) {
	var resp SearchFilesResponse
	ep := fs.sandbox.toolboxEndpoint("files/search").
		queryParam("path", path).
		queryParam("pattern", pattern)
	if err := fs.client().doJSON(ctx, http.MethodGet, ep, nil, &resp); err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	return &resp, nil
}

// SetFilePermissions 修改文件的所有者、组和权限。
func (fs *FileSystem) SetFilePermissions(ctx context.Context, path string, permissions FilePermissionsParams) error {
	if err := defaultValidator.Validate(&permissions); err != nil {
		return err
	}
	ep := fs.sandbox.toolboxEndpoint("files/permissions").queryParam("path", path)
	if permissions.Owner != "" {
		ep.queryParam("owner", permissions.Owner)
	}
	if permissions.Group != "" {
		ep.queryParam("group", permissions.Group)
	}
	if permissions.Mode != "" {
		ep.queryParam("mode", permissions.Mode)
	}
	if err := fs.client().doJSON(ctx, http.MethodPost, ep, nil, nil); err != nil {
		return fmt.Errorf("set file permissions: %w", err)
	}
	return nil
}

// UploadFile 上传文件到 path，已存在的文件会被覆盖。
func (fs *FileSystem) UploadFile(ctx context.Context, path string, data []byte) error {
	body, contentType, err := encodeMultipartFile("file", path, data)
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	resp, err := fs.client().do(ctx, http.MethodPost,
		fs.sandbox.toolboxEndpoint("files/upload").queryParam("path", path),
		clientv2.GetBytesRequestBody(body, contentType))
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	resp.Body.Close()
	return nil
}

// UploadFiles 并发上传多个文件。单个文件失败不影响其他文件，
// 全部完成后返回汇总了所有失败文件的错误。
func (fs *FileSystem) UploadFiles(ctx context.Context, files []FileUpload) error {
	if err := defaultValidator.Validate(files); err != nil {
		return err
	}

	var (
		failures = make([]error, len(files))
		g        errgroup.Group
	)
	g.SetLimit(uploadConcurrency)
	for i := range files {
		i := i
		g.Go(func() error {
			if err := fs.UploadFile(ctx, files[i].Path, files[i].Content); err != nil {
				failures[i] = fmt.Errorf("failed to upload '%s': %w", files[i].Path, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(failures...)
}
