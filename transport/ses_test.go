package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/DukeRupert/mailify/domain"
)

// mockSESClient implements SendEmailAPI for testing.
type mockSESClient struct {
	err       error
	callCount int
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

func TestSES_Name(t *testing.T) {
	if got := NewSESWithClient(&mockSESClient{}, discardLogger()).Name(); got != "ses" {
		t.Errorf("Name(): got %q, want %q", got, "ses")
	}
}

func TestSES_SendRaw(t *testing.T) {
	mock := &mockSESClient{}
	tr := NewSESWithClient(mock, discardLogger())

	raw := []byte("From: a@example.com\r\nSubject: hi\r\n\r\nbody")
	err := tr.Send(context.Background(), Envelope{
		From:       "a@example.com",
		Recipients: []string{"to@example.com", "hidden@example.com"},
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}

	input := mock.lastInput
	if input.Content.Raw == nil {
		t.Fatal("expected raw content")
	}
	if string(input.Content.Raw.Data) != string(raw) {
		t.Errorf("raw data: got %q, want %q", input.Content.Raw.Data, raw)
	}
	if got := aws.ToString(input.FromEmailAddress); got != "a@example.com" {
		t.Errorf("FromEmailAddress: got %q", got)
	}
	if got := input.Destination.ToAddresses; len(got) != 2 || got[1] != "hidden@example.com" {
		t.Errorf("destination: got %v", got)
	}
}

func TestSES_SendError(t *testing.T) {
	apiErr := errors.New("MessageRejected: Email address is not verified")
	tr := NewSESWithClient(&mockSESClient{err: apiErr}, discardLogger())

	err := tr.Send(context.Background(), Envelope{
		From:       "a@example.com",
		Recipients: []string{"to@example.com"},
		Data:       []byte("x"),
	})
	if !domain.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !errors.Is(err, apiErr) {
		t.Errorf("expected wrapped API error, got %v", err)
	}
}

func TestSES_NoRecipients(t *testing.T) {
	mock := &mockSESClient{}
	err := NewSESWithClient(mock, discardLogger()).Send(context.Background(), Envelope{From: "a@example.com"})
	if !domain.IsInvalid(err) {
		t.Fatalf("expected invalid error, got %v", err)
	}
	if mock.callCount != 0 {
		t.Errorf("client should not be called")
	}
}
