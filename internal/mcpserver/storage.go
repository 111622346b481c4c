package mcpserver

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/apresai/personacall/internal/tts"
)

// PutObjectAPI is the part of the S3 client Storage uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Storage uploads synthesized response audio to S3.
type Storage struct {
	client     PutObjectAPI
	bucket     string
	cdnBaseURL string // e.g. "https://calls.apresai.dev"
}

// NewStorage creates an S3 storage handler.
func NewStorage(client PutObjectAPI, bucket, cdnBaseURL string) *Storage {
	return &Storage{client: client, bucket: bucket, cdnBaseURL: strings.TrimSuffix(cdnBaseURL, "/")}
}

// UploadClip stores the audio of response n of a turn and returns the S3 key
// and public URL.
func (s *Storage) UploadClip(ctx context.Context, callID, turnID string, n int, audio tts.AudioResult) (key, url string, err error) {
	key = fmt.Sprintf("audio/%s/%s-%02d.%s", callID, turnID, n, audio.Format)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(audio.Data),
		ContentType:   aws.String(contentType(audio.Format)),
		ContentLength: aws.Int64(int64(len(audio.Data))),
	})
	if err != nil {
		return "", "", fmt.Errorf("upload to s3: %w", err)
	}

	url = s.cdnBaseURL + "/" + key
	return key, url, nil
}

func contentType(f tts.AudioFormat) string {
	if f == tts.FormatMP3 {
		return "audio/mpeg"
	}
	return "application/octet-stream"
}
