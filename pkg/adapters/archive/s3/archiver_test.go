package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func TestArchiver_Archive(t *testing.T) {
	fake := &fakeS3{}
	a := newArchiver(fake, "voices", "recordings", zaptest.NewLogger(t))

	location, err := a.Archive(context.Background(), "abc123.wav", strings.NewReader("RIFF"), 4, "audio/wav")
	require.NoError(t, err)

	assert.Equal(t, "s3://voices/recordings/abc123.wav", location)
	assert.Equal(t, "voices", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "recordings/abc123.wav", aws.ToString(fake.input.Key))
	assert.Equal(t, "audio/wav", aws.ToString(fake.input.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(fake.input.ContentLength))
	assert.Equal(t, "RIFF", fake.body)
}

func TestArchiver_Error(t *testing.T) {
	a := newArchiver(&fakeS3{err: errors.New("denied")}, "voices", "", zaptest.NewLogger(t))

	_, err := a.Archive(context.Background(), "x.wav", strings.NewReader(""), 0, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestNewArchiver_RequiresBucket(t *testing.T) {
	_, err := NewArchiver(context.Background(), &Config{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
