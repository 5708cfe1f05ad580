package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/DukeRupert/mailify/domain"
)

// SESConfig configures the SES transport. Empty keys fall back to the
// default AWS credential chain.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SendEmailAPI is the SES v2 operation the transport calls.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES sends the composed message as raw MIME through Amazon SES v2, so
// inline images and attachments survive untouched.
type SES struct {
	client SendEmailAPI
	logger *slog.Logger
}

// NewSES loads AWS configuration for cfg.Region and builds the client.
func NewSES(ctx context.Context, cfg SESConfig, logger *slog.Logger) (*SES, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESWithClient(sesv2.NewFromConfig(awsCfg), logger), nil
}

// NewSESWithClient wraps an existing client.
func NewSESWithClient(client SendEmailAPI, logger *slog.Logger) *SES {
	return &SES{client: client, logger: logger}
}

// Name returns "ses".
func (s *SES) Name() string {
	return "ses"
}

// Send submits env.Data as a raw message. The envelope recipients are
// passed as the destination so Bcc addresses are delivered without
// appearing in headers.
func (s *SES) Send(ctx context.Context, env Envelope) error {
	const op = "transport.ses"

	if len(env.Recipients) == 0 {
		return domain.Invalid(op, "no recipients")
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(env.From),
		Destination: &types.Destination{
			ToAddresses: env.Recipients,
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: env.Data},
		},
	})
	if err != nil {
		return domain.Transport(err, op, "SES rejected message")
	}

	s.logger.Debug("ses accepted message",
		"message_id", aws.ToString(out.MessageId),
		"recipients", len(env.Recipients),
		"size", len(env.Data),
	)
	return nil
}
