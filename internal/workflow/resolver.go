package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/churrera-dev/churrera/internal/core"
	"github.com/churrera-dev/churrera/internal/fsutil"
)

// FileResolver loads prompt files relative to the workflow file that
// references them.
type FileResolver struct{}

var _ core.PromptResolver = FileResolver{}

// ResolvePrompt reads src, which is relative to the directory of workflowPath
// unless absolute. Empty prompt files are rejected.
func (FileResolver) ResolvePrompt(_ context.Context, workflowPath, src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", core.ErrValidation(core.CodeEmptyPrompt, "prompt reference is empty").
			WithDetail("workflow", workflowPath)
	}

	path := ResolvePath(workflowPath, src)
	data, err := fsutil.ReadFile(path, 0)
	if errors.Is(err, os.ErrNotExist) {
		return "", core.ErrNotFound("prompt file", path)
	}
	if err != nil {
		return "", core.ErrValidation(core.CodeInvalidWorkflow, "reading prompt file").
			WithCause(err).WithDetail("path", path)
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return "", core.ErrValidation(core.CodeEmptyPrompt, "prompt file is empty").WithDetail("path", path)
	}
	return content, nil
}

// ResolvePath joins src to the directory of workflowPath.
func ResolvePath(workflowPath, src string) string {
	if filepath.IsAbs(src) {
		return filepath.Clean(src)
	}
	return filepath.Join(filepath.Dir(workflowPath), src)
}
