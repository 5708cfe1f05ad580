// Package render turns a template bundle into an HTML body plus the inline
// images and attachments that travel with it.
//
// A bundle is a directory holding one top-level .html file, an optional
// images/ directory (attached verbatim as inline parts) and an optional
// attachments/ directory (attached as generic binary files).
//
// Every local <img src> and every CSS background-image in a <style> block is
// re-encoded as PNG into a per-call staging directory and rewritten to a
// cid: reference, so each reference in the body has a matching part.
package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/DukeRupert/mailify/domain"
	"github.com/DukeRupert/mailify/internal/fsutil"
	"github.com/DukeRupert/mailify/internal/metrics"
	"github.com/DukeRupert/mailify/storage"
)

const (
	// ImagesDir holds images attached verbatim as inline parts.
	ImagesDir = "images"

	// AttachmentsDir holds files attached as generic binary attachments.
	AttachmentsDir = "attachments"
)

// Rendered is the output of a render: the body and every part it needs.
type Rendered struct {
	HTML        string
	Inline      []domain.InlineImage
	Attachments []domain.Attachment
}

// Renderer renders template bundles. It holds no per-call state and is safe
// for concurrent use; each call stages into its own directory.
type Renderer struct {
	stagingRoot string
	logger      *slog.Logger
}

// NewRenderer creates a Renderer that stages images below stagingRoot.
// An empty stagingRoot uses the OS temp directory.
func NewRenderer(stagingRoot string, logger *slog.Logger) *Renderer {
	return &Renderer{
		stagingRoot: stagingRoot,
		logger:      logger,
	}
}

// Render loads the bundle at templateDir, rewrites image references to
// content IDs, substitutes vars and collects inline images and attachments.
//
// Variables are a literal find-and-replace applied after serialization, in
// sorted key order. Values are inserted unescaped.
func (r *Renderer) Render(ctx context.Context, templateDir string, vars map[string]string) (*Rendered, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := fsutil.ValidatePath(templateDir)
	if err != nil {
		metrics.Rendered(false, 0)
		return nil, domain.Wrap(err, "", "render", "template not found")
	}

	htmlPath, err := findHTML(dir)
	if err != nil {
		metrics.Rendered(false, 0)
		return nil, err
	}

	st, err := newStage(r.stagingRoot, r.logger)
	if err != nil {
		metrics.Rendered(false, 0)
		return nil, err
	}
	defer st.release()

	body, err := r.renderBody(htmlPath, dir, st)
	if err != nil {
		metrics.Rendered(false, 0)
		return nil, err
	}
	body = substitute(body, vars)

	inline, err := st.images()
	if err != nil {
		metrics.Rendered(false, 0)
		return nil, err
	}
	staged := len(inline)

	bundled, err := loadInline(filepath.Join(dir, ImagesDir), inline)
	if err != nil {
		metrics.Rendered(false, 0)
		return nil, err
	}
	inline = append(inline, bundled...)

	attachments, err := loadAttachments(filepath.Join(dir, AttachmentsDir))
	if err != nil {
		metrics.Rendered(false, 0)
		return nil, err
	}

	metrics.Rendered(true, staged)
	r.logger.Debug("rendered template",
		"template", htmlPath,
		"staged_images", staged,
		"inline_images", len(inline),
		"attachments", len(attachments),
	)

	return &Rendered{
		HTML:        body,
		Inline:      inline,
		Attachments: attachments,
	}, nil
}

// renderBody parses the template, rewrites image references in place and
// serializes the document back to a string.
func (r *Renderer) renderBody(htmlPath, dir string, st *stage) (string, error) {
	raw, err := os.ReadFile(htmlPath)
	if err != nil {
		return "", domain.Internal(err, "render.read", "failed to read template")
	}

	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return "", domain.Decode(err, "render.parse", "failed to parse template")
	}

	stageRef := func(ref string) (string, error) {
		return st.put(resolveRef(dir, ref))
	}

	if err := rewriteNode(doc, stageRef); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", domain.Internal(err, "render.serialize", "failed to serialize template")
	}
	return buf.String(), nil
}

// rewriteNode walks the tree depth-first, rewriting <img src> attributes
// and <style> text.
func rewriteNode(n *html.Node, stageRef func(string) (string, error)) error {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Img:
			for i, attr := range n.Attr {
				if attr.Key != "src" || !isLocalRef(attr.Val) {
					continue
				}
				id, err := stageRef(attr.Val)
				if err != nil {
					return err
				}
				n.Attr[i].Val = "cid:" + id
			}
		case atom.Style:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.TextNode || c.Data == "" {
					continue
				}
				css, err := rewriteStyle(c.Data, stageRef)
				if err != nil {
					return err
				}
				c.Data = css
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := rewriteNode(c, stageRef); err != nil {
			return err
		}
	}
	return nil
}

// findHTML returns the lexically first top-level .html file in dir.
func findHTML(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", domain.Internal(err, "render", "failed to list template directory")
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == ".html" {
			return filepath.Join(dir, e.Name()), nil
		}
	}

	return "", domain.NotFound("render", "html file in", dir)
}

// resolveRef maps a reference from the template to a filesystem path.
// Relative references are taken from the template directory.
func resolveRef(dir, ref string) string {
	ref = strings.TrimSpace(ref)
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(dir, filepath.FromSlash(ref))
}

// substitute replaces every key of vars in body, in sorted key order. Keys
// match both literally and in their HTML-escaped form.
func substitute(body string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		body = strings.ReplaceAll(body, k, vars[k])
		// Serialization escapes quotes, ampersands and angle brackets in
		// text and attributes, so a key holding them appears escaped.
		if esc := html.EscapeString(k); esc != k {
			body = strings.ReplaceAll(body, esc, vars[k])
		}
	}
	return body
}

// loadInline reads every file under dir as an inline part keyed by its name,
// skipping names already present in have.
func loadInline(dir string, have []domain.InlineImage) ([]domain.InlineImage, error) {
	files, err := fsutil.FilesUnder(dir)
	if err != nil {
		return nil, domain.Internal(err, "render.images", "failed to list images")
	}

	seen := make(map[string]bool, len(have))
	for _, img := range have {
		seen[img.ID] = true
	}

	var out []domain.InlineImage
	for _, f := range files {
		id := filepath.Base(f)
		if seen[id] {
			continue
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, domain.Internal(err, "render.images", fmt.Sprintf("failed to read %q", f))
		}
		seen[id] = true
		out = append(out, domain.InlineImage{
			ID:          id,
			ContentType: storage.DetectContentType("", id, bytes.NewReader(data)),
			Content:     data,
		})
	}
	return out, nil
}

func loadAttachments(dir string) ([]domain.Attachment, error) {
	files, err := fsutil.FilesUnder(dir)
	if err != nil {
		return nil, domain.Internal(err, "render.attachments", "failed to list attachments")
	}

	out := make([]domain.Attachment, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, domain.Internal(err, "render.attachments", fmt.Sprintf("failed to read %q", f))
		}
		out = append(out, domain.Attachment{
			Filename:    filepath.Base(f),
			ContentType: "application/octet-stream",
			Content:     data,
		})
	}
	return out, nil
}
