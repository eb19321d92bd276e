package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// FileProvider implements SecretProvider by reading secret files, the form
// in which CI credential bindings and container runtimes expose secrets.
type FileProvider struct {
	readFile func(name string) ([]byte, error)
}

// NewFileProvider creates a FileProvider backed by the OS filesystem.
func NewFileProvider() *FileProvider {
	return &FileProvider{readFile: os.ReadFile}
}

// GetParametersBatch reads each key as a file path. Missing files are
// omitted from the result; any other read error aborts the batch. Trailing
// newlines are trimmed since editors and `echo` add them.
func (p *FileProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, path := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := p.readFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read secret file %s: %w", path, err)
		}
		result[path] = strings.TrimRight(string(data), "\r\n")
	}
	return result, nil
}
