package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in memory.
type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	data, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(string(data))),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(f.types[key]),
		LastModified:  aws.Time(time.Unix(0, 0)),
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestR2Storage_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := NewR2StorageWithClient(fake, "mail", "https://files.example.com/", discardLogger())

	require.NoError(t, s.Put(ctx, "inbox/1/attachments/x.pdf", strings.NewReader("pdf"), PutOptions{}))
	assert.Equal(t, "application/pdf", fake.types["inbox/1/attachments/x.pdf"])

	rc, info, err := s.Get(ctx, "inbox/1/attachments/x.pdf")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "pdf", string(data))
	assert.Equal(t, int64(3), info.Size)

	err = s.Put(ctx, "inbox/1/attachments/x.pdf", strings.NewReader("again"), PutOptions{})
	assert.True(t, IsKeyExists(err))

	require.NoError(t, s.Delete(ctx, "inbox/1/attachments/x.pdf"))
	exists, err := s.Exists(ctx, "inbox/1/attachments/x.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	_, _, err = s.Get(ctx, "inbox/1/attachments/x.pdf")
	assert.True(t, IsNotFound(err))
}

func TestR2Storage_PutTooLarge(t *testing.T) {
	fake := newFakeS3()
	s := NewR2StorageWithClient(fake, "mail", "", discardLogger())

	err := s.Put(context.Background(), "big", strings.NewReader("0123456789"), PutOptions{MaxSize: 3})
	assert.True(t, IsTooLarge(err))
	assert.Empty(t, fake.objects)
}

func TestR2Storage_URL(t *testing.T) {
	s := NewR2StorageWithClient(newFakeS3(), "mail", "https://files.example.com/", discardLogger())

	u, err := s.URL(context.Background(), "a/b.png", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/a/b.png", u)

	_, err = s.URL(context.Background(), "a/b.png", time.Minute)
	assert.Error(t, err, "presigning needs a real client")
}

func TestR2Storage_PresignedURL(t *testing.T) {
	s, err := NewR2Storage(R2Config{
		AccountID:       "acct",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		BucketName:      "mail",
	}, discardLogger())
	require.NoError(t, err)

	u, err := s.URL(context.Background(), "inbox/1/a.pdf", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://acct.r2.cloudflarestorage.com/mail/inbox/1/a.pdf?"), u)
	assert.Contains(t, u, "X-Amz-Expires=300")
}

func TestWrapS3Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", &types.NotFound{}, ErrNotFound},
		{"no such key", &types.NoSuchKey{}, ErrNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, ErrAccessDenied},
		{"generic api error", &smithy.GenericAPIError{Code: "SlowDown"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapS3Error(tt.err)
			if tt.want == nil {
				assert.False(t, errors.Is(got, ErrNotFound))
				assert.False(t, errors.Is(got, ErrAccessDenied))
				assert.ErrorIs(t, got, tt.err)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestR2Storage_InvalidKey(t *testing.T) {
	s := NewR2StorageWithClient(newFakeS3(), "mail", "", discardLogger())
	err := s.Put(context.Background(), "../x", strings.NewReader("x"), PutOptions{})
	assert.True(t, IsInvalidKey(err))
}
