package render

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/DukeRupert/mailify/domain"
)

// stage is the per-render working directory that holds re-encoded copies of
// every image the HTML references. It is removed by release.
type stage struct {
	dir    string
	ids    []string
	seen   map[string]bool
	logger *slog.Logger
}

// newStage creates a fresh directory below root (os.TempDir() when empty).
func newStage(root string, logger *slog.Logger) (*stage, error) {
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, domain.Internal(err, "render.stage", "failed to create staging root")
		}
	}

	dir, err := os.MkdirTemp(root, "mailify-stage-")
	if err != nil {
		return nil, domain.Internal(err, "render.stage", "failed to create staging directory")
	}

	return &stage{
		dir:    dir,
		seen:   make(map[string]bool),
		logger: logger,
	}, nil
}

// put decodes the image at path, writes it to the stage as PNG and returns
// the content ID (base name with its original extension).
func (s *stage) put(path string) (string, error) {
	id := filepath.Base(path)

	img, err := imaging.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.NotFound("render.image", "image", path)
		}
		return "", domain.Decode(err, "render.image", fmt.Sprintf("failed to load image %q", path))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", domain.Internal(err, "render.image", fmt.Sprintf("failed to encode image %q", path))
	}

	if err := os.WriteFile(filepath.Join(s.dir, id), buf.Bytes(), 0o644); err != nil {
		return "", domain.Internal(err, "render.stage", "failed to write staged image")
	}

	if !s.seen[id] {
		s.seen[id] = true
		s.ids = append(s.ids, id)
	}

	s.logger.Debug("staged image",
		"id", id,
		"source", path,
		"size", buf.Len(),
	)

	return id, nil
}

// images loads the staged files back as inline parts, in first-reference order.
func (s *stage) images() ([]domain.InlineImage, error) {
	out := make([]domain.InlineImage, 0, len(s.ids))
	for _, id := range s.ids {
		data, err := os.ReadFile(filepath.Join(s.dir, id))
		if err != nil {
			return nil, domain.Internal(err, "render.stage", "failed to read staged image")
		}
		out = append(out, domain.InlineImage{
			ID:          id,
			ContentType: "image/png",
			Content:     data,
		})
	}
	return out, nil
}

func (s *stage) release() {
	if err := os.RemoveAll(s.dir); err != nil {
		s.logger.Warn("failed to remove staging directory", "dir", s.dir, "error", err)
	}
}
