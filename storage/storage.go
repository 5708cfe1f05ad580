// Package storage persists files pulled out of inbound mail.
//
// Two providers implement Storage:
//   - LocalStorage: a directory on the local filesystem
//   - R2Storage: Cloudflare R2 (S3-compatible) object storage
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the operations the mailbox needs from a file store.
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at key. It fails with ErrKeyExists when the key is
	// taken, unless opts.Overwrite is set.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get returns the data at key (caller must close) and its metadata.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a link to the object. Providers that sign URLs honour
	// expires; others ignore it.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is detected from the key when empty.
	ContentType string

	// MaxSize in bytes; 0 means no limit. Larger objects fail with ErrTooLarge.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// =============================================================================
// Configuration
// =============================================================================

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderR2 identifies the Cloudflare R2 storage provider.
	ProviderR2 = "r2"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	Local    LocalConfig
	R2       R2Config
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory, e.g. "./mail-attachments".
	BasePath string

	// BaseURL prefixes keys in URL; empty yields file:// URLs.
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's public domain. When empty, URL presigns.
	PublicURL string

	// Region defaults to "auto".
	Region string

	// Endpoint overrides the account endpoint, for S3-compatible test servers.
	Endpoint string
}

// New builds the provider named by cfg.Provider. An empty provider means local.
func New(cfg Config, logger *slog.Logger) (Storage, error) {
	switch cfg.Provider {
	case "", ProviderLocal:
		return NewLocalStorage(cfg.Local, logger)
	case ProviderR2:
		return NewR2Storage(cfg.R2, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// =============================================================================
// Key Generation
// =============================================================================

// AttachmentKey generates a key for an attachment of the message with the
// given UID. Format: {prefix}/{uid}/attachments/{uuid}-{filename}
//
// The filename is reduced to its base name. A missing name is replaced by
// "attachment" plus an extension derived from contentType.
func AttachmentKey(prefix string, uid uint32, filename, contentType string) string {
	name := sanitizeFilename(filename)
	if name == "" {
		name = "attachment" + extensionForContentType(contentType)
	}

	key := fmt.Sprintf("%d/attachments/%s-%s", uid, uuid.New(), name)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	switch name {
	case ".", "/", "..":
		return ""
	}
	return strings.ReplaceAll(name, " ", "_")
}
