package storage

import (
	"strings"
	"testing"
)

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name     string
		provided string
		filename string
		data     string
		useData  bool
		want     string
	}{
		{name: "provided wins", provided: "text/x-custom", filename: "a.png", want: "text/x-custom"},
		{name: "png extension", filename: "logo.png", want: "image/png"},
		{name: "upper case extension", filename: "PHOTO.JPG", want: "image/jpeg"},
		{name: "sniffed html", filename: "noext", data: "<html><body>hi</body></html>", useData: true, want: "text/html; charset=utf-8"},
		{name: "sniffed png", filename: "blob", data: "\x89PNG\r\n\x1a\n0000", useData: true, want: "image/png"},
		{name: "fallback", filename: "unknown", want: "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			if tt.useData {
				got = DetectContentType(tt.provided, tt.filename, strings.NewReader(tt.data))
			} else {
				got = DetectContentType(tt.provided, tt.filename, nil)
			}
			if got != tt.want {
				t.Errorf("DetectContentType() = %q, want %q", got, tt.want)
			}
		})
	}
}
