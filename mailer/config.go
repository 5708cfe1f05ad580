package mailer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/DukeRupert/mailify/domain"
	"github.com/DukeRupert/mailify/internal"
	"github.com/DukeRupert/mailify/internal/credential"
	"github.com/DukeRupert/mailify/mailbox"
	"github.com/DukeRupert/mailify/storage"
	"github.com/DukeRupert/mailify/transport"
)

// EnvPrefix is prepended to every key when read from the environment,
// e.g. MAILIFY_SENDER_EMAIL.
const EnvPrefix = "MAILIFY"

const (
	TransportSMTP = "smtp"
	TransportSES  = "ses"
)

// Config holds the sender identity and delivery settings. It is treated as
// immutable once passed to New.
type Config struct {
	SenderEmail string `mapstructure:"sender_email"`
	SenderName  string `mapstructure:"sender_name"`
	Password    string `mapstructure:"password"`

	// Transport is "smtp" or "ses".
	Transport string `mapstructure:"transport"`
	SMTPHost  string `mapstructure:"smtp_host"`
	SMTPPort  int    `mapstructure:"smtp_port"`

	// SMTPInsecure allows sessions that cannot upgrade with STARTTLS, for
	// local relays.
	SMTPInsecure bool `mapstructure:"smtp_insecure"`

	// SES keys; empty falls back to the default AWS credential chain.
	SESRegion          string `mapstructure:"ses_region"`
	SESAccessKeyID     string `mapstructure:"ses_access_key_id"`
	SESSecretAccessKey string `mapstructure:"ses_secret_access_key"`

	// StagingDir is where rendered images are staged; empty uses the OS
	// temp directory.
	StagingDir string `mapstructure:"staging_dir"`

	// IMAPAddr is host:port of the mailbox server.
	IMAPAddr     string `mapstructure:"imap_addr"`
	IMAPInsecure bool   `mapstructure:"imap_insecure"`

	// Storage for attachments saved from inbound mail
	StorageProvider   string `mapstructure:"storage_provider"`
	StoragePath       string `mapstructure:"storage_path"`
	StorageURL        string `mapstructure:"storage_url"`
	R2AccountID       string `mapstructure:"r2_account_id"`
	R2AccessKeyID     string `mapstructure:"r2_access_key_id"`
	R2SecretAccessKey string `mapstructure:"r2_secret_access_key"`
	R2BucketName      string `mapstructure:"r2_bucket_name"`
	R2PublicURL       string `mapstructure:"r2_public_url"`

	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`

	// KeyringKey names the keyring entry that holds Password when Password
	// is not set directly.
	KeyringKey string `mapstructure:"keyring_key"`
}

var defaults = map[string]any{
	"sender_email":          "",
	"sender_name":           "",
	"password":              "",
	"transport":             TransportSMTP,
	"smtp_host":             transport.DefaultSMTPHost,
	"smtp_port":             transport.DefaultSMTPPort,
	"smtp_insecure":         false,
	"ses_region":            "",
	"ses_access_key_id":     "",
	"ses_secret_access_key": "",
	"staging_dir":           "",
	"imap_addr":             mailbox.DefaultAddr,
	"imap_insecure":         false,
	"storage_provider":      storage.ProviderLocal,
	"storage_path":          "./attachments",
	"storage_url":           "",
	"r2_account_id":         "",
	"r2_access_key_id":      "",
	"r2_secret_access_key":  "",
	"r2_bucket_name":        "",
	"r2_public_url":         "",
	"env":                   "production",
	"log_level":             "info",
	"keyring_key":           "",
}

// secretStore is the part of the keyring LoadConfig reads from.
type secretStore interface {
	Get(key string) (string, error)
}

var openSecrets = func() (secretStore, error) {
	s, err := credential.Open()
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LoadConfig reads configuration from, in increasing priority: defaults,
// the YAML file at path (skipped when path is empty or the file is
// missing), a .env file in the working directory and MAILIFY_* environment
// variables. When Password is empty and KeyringKey is set the password is
// read from the OS keyring.
func LoadConfig(path string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Password == "" && cfg.KeyringKey != "" {
		secrets, err := openSecrets()
		if err != nil {
			return nil, err
		}
		password, err := secrets.Get(cfg.KeyringKey)
		if err != nil {
			return nil, err
		}
		cfg.Password = password
	}

	return cfg, nil
}

// Validate checks that the configuration can send mail.
func (c *Config) Validate() error {
	const op = "mailer.config"

	if !domain.ValidateAddress(c.SenderEmail) {
		return domain.Invalid(op, fmt.Sprintf("sender_email %q is not a valid address", c.SenderEmail))
	}

	switch c.Transport {
	case TransportSMTP:
		if c.SMTPHost == "" {
			return domain.Invalid(op, "smtp_host is required")
		}
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			return domain.Invalid(op, fmt.Sprintf("smtp_port %d out of range", c.SMTPPort))
		}
	case TransportSES:
		if c.SESRegion == "" {
			return domain.Invalid(op, "ses_region is required for the ses transport")
		}
	default:
		return domain.Invalid(op, fmt.Sprintf("unknown transport %q", c.Transport))
	}

	return nil
}

// Logger builds a logger for c.Env and c.LogLevel writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return internal.NewLogger(w, c.Env, c.LogLevel)
}

// Reader returns a mailbox reader for IMAPAddr, over plain TCP when
// IMAPInsecure is set.
func (c *Config) Reader(logger *slog.Logger) *mailbox.Reader {
	var opts []mailbox.Option
	if c.IMAPInsecure {
		opts = append(opts, mailbox.WithInsecure())
	}
	return mailbox.NewReader(c.IMAPAddr, logger, opts...)
}

// Credentials returns the sender account login used for the mailbox.
func (c *Config) Credentials() mailbox.Credentials {
	return mailbox.Credentials{
		Username: c.SenderEmail,
		Password: c.Password,
	}
}

// StorageConfig maps the storage keys onto a storage.Config.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Provider: c.StorageProvider,
		Local: storage.LocalConfig{
			BasePath: c.StoragePath,
			BaseURL:  c.StorageURL,
		},
		R2: storage.R2Config{
			AccountID:       c.R2AccountID,
			AccessKeyID:     c.R2AccessKeyID,
			SecretAccessKey: c.R2SecretAccessKey,
			BucketName:      c.R2BucketName,
			PublicURL:       c.R2PublicURL,
		},
	}
}
