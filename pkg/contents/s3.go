package contents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Manager serves resources from an S3 bucket.
//
// Example:
//
//	cfg, _ := config.LoadDefaultConfig(context.Background())
//	mgr := contents.NewS3Manager(s3.NewFromConfig(cfg), "my-bucket", "notebooks/")
type S3Manager struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Manager creates an S3Manager for the given bucket. All resource paths
// are stored under prefix.
func NewS3Manager(client *s3.Client, bucket, prefix string) *S3Manager {
	return &S3Manager{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (m *S3Manager) key(path string) string {
	return m.prefix + path
}

// Get implements Manager.
func (m *S3Manager) Get(ctx context.Context, path string, withContent bool) (Model, error) {
	if !withContent {
		head, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(m.key(path)),
		})
		if err != nil {
			var nf *types.NotFound
			if errors.As(err, &nf) {
				return Model{}, ErrNotFound
			}
			return Model{}, fmt.Errorf("contents: head %s: %w", path, err)
		}
		return Model{
			Path:         path,
			LastModified: aws.ToTime(head.LastModified),
		}, nil
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(path)),
	})
	if err != nil {
		var nk *types.NoSuchKey
		if errors.As(err, &nk) {
			return Model{}, ErrNotFound
		}
		return Model{}, fmt.Errorf("contents: get %s: %w", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Model{}, fmt.Errorf("contents: read %s: %w", path, err)
	}

	return Model{
		Path:         path,
		Content:      data,
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// Save implements Manager.
func (m *S3Manager) Save(ctx context.Context, model Model) (Model, error) {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(model.Path)),
		Body:   bytes.NewReader(model.Content),
	})
	if err != nil {
		return Model{}, fmt.Errorf("contents: put %s: %w", model.Path, err)
	}

	// The put response carries no LastModified; fetch it for the caller so
	// the loader can adopt the post-save timestamp.
	head, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(model.Path)),
	})
	if err != nil {
		return Model{}, fmt.Errorf("contents: head after save %s: %w", model.Path, err)
	}

	saved := model
	saved.LastModified = aws.ToTime(head.LastModified)
	return saved, nil
}

// Exists implements Manager.
func (m *S3Manager) Exists(ctx context.Context, path string) bool {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(path)),
	})
	return err == nil
}
