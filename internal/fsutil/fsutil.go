// Package fsutil resolves template paths and lists the files of a bundle.
package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/DukeRupert/mailify/domain"
)

// ValidatePath returns the absolute, cleaned form of p.
// Returns an ENOTFOUND error if nothing exists at p.
func ValidatePath(p string) (string, error) {
	if p == "" {
		return "", domain.NotFound("fsutil.validate", "path", p)
	}

	abs, err := filepath.Abs(p)
	if err != nil {
		return "", domain.Internal(err, "fsutil.validate", "failed to resolve path")
	}

	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.NotFound("fsutil.validate", "path", p)
		}
		return "", domain.Internal(err, "fsutil.validate", fmt.Sprintf("failed to stat %q", p))
	}

	return abs, nil
}

// FilesUnder returns every regular file below dir, recursively, in lexical
// order. A missing dir yields an empty list.
func FilesUnder(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}

	sort.Strings(files)
	return files, nil
}
