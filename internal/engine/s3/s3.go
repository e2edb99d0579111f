// Package s3 implements the engine on S3-compatible object storage — AWS
// itself or anything speaking its API (MinIO and friends). Keys map 1:1 to
// object keys under an optional prefix; write stamps come from the
// objects' LastModified, so their resolution is whatever the server keeps
// (one second on stock S3).
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/matheus3301/msgvault/internal/engine"
)

// Options configures the engine. AccessKey/SecretKey select static
// credentials (MinIO, explicit AWS keys); leaving them empty uses the
// default chain (IAM roles, env vars). Endpoint and PathStyle exist for
// non-AWS servers.
type Options struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	PathStyle    bool
	EnsureBucket bool
}

// Engine stores keys as S3 objects. It implements engine.Engine,
// engine.Scanner and engine.Stamper.
type Engine struct {
	client *awss3.Client
	bucket string
	prefix string
}

var (
	_ engine.Engine  = (*Engine)(nil)
	_ engine.Scanner = (*Engine)(nil)
	_ engine.Stamper = (*Engine)(nil)
)

// Open builds the client and, when opts.EnsureBucket is set, creates the
// bucket if it does not exist.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 engine: bucket is required")
	}

	var cfg aws.Config
	var err error
	if opts.AccessKey != "" && opts.SecretKey != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(opts.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				opts.AccessKey,
				opts.SecretKey,
				"",
			)),
		)
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(opts.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		if opts.PathStyle {
			o.UsePathStyle = true
		}
	})

	if opts.EnsureBucket {
		if err := ensureBucket(ctx, client, opts.Bucket); err != nil {
			return nil, err
		}
	}

	return &Engine{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

// Has implements engine.Engine.
func (e *Engine) Has(ctx context.Context, key string) (bool, error) {
	_, err := e.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(e.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object: %w", err)
	}
	return true, nil
}

// Get implements engine.Engine.
func (e *Engine) Get(ctx context.Context, key string) (string, bool, error) {
	out, err := e.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(e.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get object: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, fmt.Errorf("read object body: %w", err)
	}
	return string(data), true, nil
}

// Set implements engine.Engine.
func (e *Engine) Set(ctx context.Context, key, value string) error {
	_, err := e.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(e.objectKey(key)),
		Body:   bytes.NewReader([]byte(value)),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Delete implements engine.Engine. S3 deletes are silent about missing
// objects, so existence is checked first to honor the removed result.
func (e *Engine) Delete(ctx context.Context, key string) (bool, error) {
	exists, err := e.Has(ctx, key)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	_, err = e.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(e.objectKey(key)),
	})
	if err != nil {
		return false, fmt.Errorf("delete object: %w", err)
	}
	return true, nil
}

// Keys implements engine.Engine, streaming page by page off the
// ListObjectsV2 paginator.
func (e *Engine) Keys(ctx context.Context, fn func(key string) bool) error {
	return e.list(ctx, e.prefix, func(key string) bool {
		return fn(key)
	})
}

// Entries implements engine.Engine. Objects that vanish between listing
// and fetch are skipped.
func (e *Engine) Entries(ctx context.Context, fn func(key, value string) bool) error {
	var innerErr error
	err := e.list(ctx, e.prefix, func(key string) bool {
		value, found, err := e.Get(ctx, key)
		if err != nil {
			innerErr = err
			return false
		}
		if !found {
			return true
		}
		return fn(key, value)
	})
	if err != nil {
		return err
	}
	return innerErr
}

// Clear implements engine.Engine.
func (e *Engine) Clear(ctx context.Context) error {
	var doomed []string
	if err := e.list(ctx, e.prefix, func(key string) bool {
		doomed = append(doomed, key)
		return true
	}); err != nil {
		return err
	}
	for _, key := range doomed {
		_, err := e.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(e.bucket),
			Key:    aws.String(e.objectKey(key)),
		})
		if err != nil {
			return fmt.Errorf("delete object: %w", err)
		}
	}
	return nil
}

// Close implements engine.Engine. The SDK client holds no resources that
// need releasing.
func (e *Engine) Close() error { return nil }

// Scan implements engine.Scanner. The listing is narrowed server-side to
// the pattern's literal prefix (everything before the first "*"); the full
// pattern is then matched client-side.
func (e *Engine) Scan(ctx context.Context, pattern string) ([]string, error) {
	literal := pattern
	if i := strings.IndexByte(pattern, '*'); i >= 0 {
		literal = pattern[:i]
	}
	var matched []string
	err := e.list(ctx, e.prefix+literal, func(key string) bool {
		if engine.Match(pattern, key) {
			matched = append(matched, key)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// ModTime implements engine.Stamper from the object's LastModified.
func (e *Engine) ModTime(ctx context.Context, key string) (time.Time, bool, error) {
	out, err := e.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(e.bucket),
		Key:    aws.String(e.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("head object: %w", err)
	}
	if out.LastModified == nil {
		return time.Time{}, false, nil
	}
	return *out.LastModified, true, nil
}

// list streams the logical keys under storagePrefix to fn.
func (e *Engine) list(ctx context.Context, storagePrefix string, fn func(key string) bool) error {
	paginator := awss3.NewListObjectsV2Paginator(e.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(e.bucket),
		Prefix: aws.String(storagePrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			if !fn(strings.TrimPrefix(*obj.Key, e.prefix)) {
				return nil
			}
		}
	}
	return nil
}

func (e *Engine) objectKey(key string) string { return e.prefix + key }

func ensureBucket(ctx context.Context, client *awss3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}
	_, err = client.CreateBucket(ctx, &awss3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil && !isBucketExists(err) {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// The SDK surfaces missing objects under a few different error shapes
// depending on the operation; matching the code in the message keeps one
// helper covering all of them.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey")
}

func isBucketExists(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "BucketAlreadyExists") || strings.Contains(msg, "BucketAlreadyOwnedByYou")
}
