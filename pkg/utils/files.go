package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// GetPathInfo resolves relPath to an absolute path and its directory.
func GetPathInfo(relPath string) (fullPath string, parentDir string, err error) {
	fullPath, err = filepath.Abs(relPath)
	if err != nil {
		return "", "", errors.Wrapf(err, "resolve %q", relPath)
	}
	return fullPath, filepath.Dir(fullPath), nil
}

// ReadSource returns the contents of path, or of stdin when path is "" or "-".
func ReadSource(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(err, "read stdin")
		}
		return string(data), nil
	}
	fullPath, _, err := GetPathInfo(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", errors.Wrapf(err, "read %q", path)
	}
	return string(data), nil
}

// AssemblyPath swaps the extension of a source path for ".s".
func AssemblyPath(inPath string) string {
	ext := filepath.Ext(inPath)
	if ext == "" {
		return inPath + ".s"
	}
	return strings.TrimSuffix(inPath, ext) + ".s"
}
