package env

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultViewportSize = 1024 * 5

// FileEnv is the file-browsing surface: it resolves paths relative to the
// session working directory and returns viewport-sized chunks so large
// documents do not flood the conversation.
type FileEnv struct {
	root     string
	viewport int
}

// NewFileEnv creates a file surface rooted at root. viewport bounds the
// number of bytes returned per read.
func NewFileEnv(root string, viewport int) *FileEnv {
	if viewport <= 0 {
		viewport = defaultViewportSize
	}
	return &FileEnv{root: root, viewport: viewport}
}

// Init ensures the downloads area exists under the working directory.
func (e *FileEnv) Init(_ context.Context) error {
	if err := os.MkdirAll(filepath.Join(e.root, "downloads"), 0o755); err != nil {
		return fmt.Errorf("create downloads directory: %w", err)
	}
	return nil
}

// Run opens the file named by the task (relative to the working directory)
// and returns its first viewport. A trailing marker indicates truncation.
func (e *FileEnv) Run(_ context.Context, task string) (string, error) {
	rel := strings.TrimSpace(task)
	path := filepath.Join(e.root, filepath.Clean("/"+rel))

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("open file %s: %w", rel, err)
	}
	if len(data) > e.viewport {
		return string(data[:e.viewport]) + "\n[... truncated ...]", nil
	}
	return string(data), nil
}

// Close is a no-op.
func (e *FileEnv) Close(_ context.Context) error { return nil }
