package storage

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// DetectContentType determines the MIME type of a file.
//
// Detection priority:
//  1. providedType, when non-empty
//  2. the filename extension via mime.TypeByExtension
//  3. sniffing the first 512 bytes of data, when data is non-nil
//  4. "application/octet-stream"
func DetectContentType(providedType, filename string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	if data != nil {
		buffer := make([]byte, 512)
		n, err := io.ReadFull(data, buffer)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buffer[:n])
		}
	}

	return "application/octet-stream"
}

// extensionForContentType returns a common file extension for a MIME type.
func extensionForContentType(contentType string) string {
	extensions := map[string]string{
		"image/jpeg":      ".jpg",
		"image/png":       ".png",
		"image/gif":       ".gif",
		"text/plain":      ".txt",
		"text/html":       ".html",
		"text/calendar":   ".ics",
		"application/pdf": ".pdf",
		"application/zip": ".zip",
	}

	bt := baseType(contentType)
	if ext, ok := extensions[bt]; ok {
		return ext
	}

	if bt != "" {
		if exts, err := mime.ExtensionsByType(bt); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}

	return ".bin"
}

func baseType(contentType string) string {
	bt := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(bt))
}
