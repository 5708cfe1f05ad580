package mailer

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/mailify/domain"
	"github.com/DukeRupert/mailify/storage"
)

type mapSecrets map[string]string

func (m mapSecrets) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func withSecrets(t *testing.T, s secretStore) {
	t.Helper()
	orig := openSecrets
	openSecrets = func() (secretStore, error) { return s, nil }
	t.Cleanup(func() { openSecrets = orig })
}

// chdirTemp runs the test from an empty directory so no stray .env is loaded.
func chdirTemp(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, TransportSMTP, cfg.Transport)
	assert.Equal(t, "smtp.gmail.com", cfg.SMTPHost)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "imap.gmail.com:993", cfg.IMAPAddr)
	assert.Equal(t, storage.ProviderLocal, cfg.StorageProvider)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfig_Env(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MAILIFY_SENDER_EMAIL", "env@example.com")
	t.Setenv("MAILIFY_SENDER_NAME", "Env Sender")
	t.Setenv("MAILIFY_SMTP_PORT", "2525")
	t.Setenv("MAILIFY_IMAP_INSECURE", "true")
	t.Setenv("MAILIFY_SMTP_INSECURE", "true")
	t.Setenv("MAILIFY_SES_ACCESS_KEY_ID", "AKIDEXAMPLE")
	t.Setenv("MAILIFY_SES_SECRET_ACCESS_KEY", "secret")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env@example.com", cfg.SenderEmail)
	assert.Equal(t, "Env Sender", cfg.SenderName)
	assert.Equal(t, 2525, cfg.SMTPPort)
	assert.True(t, cfg.IMAPInsecure)
	assert.True(t, cfg.SMTPInsecure)
	assert.Equal(t, "AKIDEXAMPLE", cfg.SESAccessKeyID)
	assert.Equal(t, "secret", cfg.SESSecretAccessKey)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	chdirTemp(t)
	require.NoError(t, os.WriteFile(".env", []byte("MAILIFY_SENDER_EMAIL=dotenv@example.com\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("MAILIFY_SENDER_EMAIL") })

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv@example.com", cfg.SenderEmail)
}

func TestLoadConfig_File(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "mailify.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sender_email: file@example.com
transport: ses
ses_region: eu-west-1
staging_dir: /tmp/stage
`), 0o644))

	// environment beats the file
	t.Setenv("MAILIFY_SES_REGION", "us-east-1")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "file@example.com", cfg.SenderEmail)
	assert.Equal(t, TransportSES, cfg.Transport)
	assert.Equal(t, "us-east-1", cfg.SESRegion)
	assert.Equal(t, "/tmp/stage", cfg.StagingDir)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, TransportSMTP, cfg.Transport)
}

func TestLoadConfig_BadFile(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sender_email: [unterminated"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_KeyringPassword(t *testing.T) {
	chdirTemp(t)
	withSecrets(t, mapSecrets{"gmail": "from-keyring"})
	t.Setenv("MAILIFY_KEYRING_KEY", "gmail")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", cfg.Password)
}

func TestLoadConfig_PasswordBeatsKeyring(t *testing.T) {
	chdirTemp(t)
	withSecrets(t, mapSecrets{"gmail": "from-keyring"})
	t.Setenv("MAILIFY_KEYRING_KEY", "gmail")
	t.Setenv("MAILIFY_PASSWORD", "direct")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "direct", cfg.Password)
}

func TestLoadConfig_KeyringMissingEntry(t *testing.T) {
	chdirTemp(t)
	withSecrets(t, mapSecrets{})
	t.Setenv("MAILIFY_KEYRING_KEY", "gmail")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		SenderEmail: "sender@example.com",
		Transport:   TransportSMTP,
		SMTPHost:    "smtp.example.com",
		SMTPPort:    587,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid smtp", mutate: func(c *Config) {}},
		{name: "bad sender", mutate: func(c *Config) { c.SenderEmail = "user@domain" }, wantErr: true},
		{name: "missing host", mutate: func(c *Config) { c.SMTPHost = "" }, wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.SMTPPort = 70000 }, wantErr: true},
		{name: "ses without region", mutate: func(c *Config) { c.Transport = TransportSES }, wantErr: true},
		{name: "ses with region", mutate: func(c *Config) { c.Transport = TransportSES; c.SESRegion = "us-east-1" }},
		{name: "unknown transport", mutate: func(c *Config) { c.Transport = "fax" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !domain.IsInvalid(err) {
				t.Errorf("Config.Validate() error code = %s, want %s", domain.ErrorCode(err), domain.EINVALID)
			}
		})
	}
}

func TestConfig_StorageConfig(t *testing.T) {
	cfg := Config{StorageProvider: storage.ProviderR2, R2BucketName: "mail", StoragePath: "./att"}
	sc := cfg.StorageConfig()
	assert.Equal(t, storage.ProviderR2, sc.Provider)
	assert.Equal(t, "mail", sc.R2.BucketName)
	assert.Equal(t, "./att", sc.Local.BasePath)
}

func TestConfig_Logger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Env: "production", LogLevel: "warn"}
	logger := cfg.Logger(&buf)

	logger.Info("dropped")
	logger.Warn("kept", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "mailify", entry["lib"])
	assert.Equal(t, "value", entry["key"])
}
