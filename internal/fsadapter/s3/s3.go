// Package s3 provides an S3/MinIO storage adapter.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/shelfd/shelfd/internal/fsadapter"
	"github.com/shelfd/shelfd/internal/fsmeta"
	"github.com/shelfd/shelfd/internal/logging"
	"github.com/shelfd/shelfd/internal/metrics"
)

// Config is a JSON-serializable config for S3 adapters stored in the database.
type Config struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"use_ssl"`
}

// Adapter implements fsadapter.Adapter using S3/MinIO.
type Adapter struct {
	client *s3.Client
	bucket string
}

// New creates a new S3 adapter from a Config.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
			}, nil
		},
	)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	adapter := &Adapter{
		client: client,
		bucket: cfg.Bucket,
	}

	if err := adapter.ensureBucket(ctx); err != nil {
		logging.Error("bucket check failed", zap.Error(err))
	}

	return adapter, nil
}

// NewFromJSON creates an Adapter from raw JSON config.
func NewFromJSON(ctx context.Context, raw json.RawMessage) (*Adapter, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse s3 config: %w", err)
	}
	return New(ctx, cfg)
}

func (a *Adapter) ensureBucket(ctx context.Context) error {
	start := time.Now()
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		_, createErr := a.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(a.bucket),
		})
		if createErr != nil {
			metrics.RecordBackendOp("s3", "create_bucket", time.Since(start), false)
			return fmt.Errorf("bucket %s does not exist and cannot create: %w", a.bucket, createErr)
		}
		metrics.RecordBackendOp("s3", "create_bucket", time.Since(start), true)
		logging.Info("created S3 bucket", zap.String("bucket", a.bucket))
	}
	return nil
}

// objectKey strips the leading slash; S3 keys are rootless.
func objectKey(p string) string {
	return strings.TrimPrefix(p, "/")
}

// List returns raw metadata for every object directly under dir. S3 has no
// real directories; a missing prefix is indistinguishable from an empty one,
// so List never reports ErrNotFound.
func (a *Adapter) List(ctx context.Context, dir string) ([]fsmeta.Raw, error) {
	start := time.Now()

	prefix := objectKey(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var metas []fsmeta.Raw
	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(a.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			metrics.RecordBackendOp("s3", "list_objects", time.Since(start), false)
			return nil, fmt.Errorf("list %s: %w", dir, err)
		}
		for _, cp := range page.CommonPrefixes {
			metas = append(metas, fsmeta.Raw{
				Path: "/" + strings.TrimSuffix(aws.ToString(cp.Prefix), "/"),
				Type: "dir",
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				// Zero-byte directory marker
				continue
			}
			var ts int64
			if obj.LastModified != nil {
				ts = obj.LastModified.Unix()
			}
			metas = append(metas, fsmeta.Raw{
				Path:      "/" + key,
				Type:      "file",
				Timestamp: ts,
				Size:      aws.ToInt64(obj.Size),
			})
		}
	}

	metrics.RecordBackendOp("s3", "list_objects", time.Since(start), true)
	return metas, nil
}

// Metadata returns raw metadata for a single object.
func (a *Adapter) Metadata(ctx context.Context, p string) (fsmeta.Raw, error) {
	start := time.Now()

	head, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey(p)),
	})
	if err != nil {
		metrics.RecordBackendOp("s3", "head_object", time.Since(start), false)
		if isNotFound(err) {
			return fsmeta.Raw{}, fmt.Errorf("%w: %s", fsadapter.ErrNotFound, p)
		}
		return fsmeta.Raw{}, fmt.Errorf("head %s: %w", p, err)
	}

	metrics.RecordBackendOp("s3", "head_object", time.Since(start), true)

	var ts int64
	if head.LastModified != nil {
		ts = head.LastModified.Unix()
	}
	return fsmeta.Raw{
		Path:      p,
		Type:      "file",
		Timestamp: ts,
		Size:      aws.ToInt64(head.ContentLength),
		Mimetype:  aws.ToString(head.ContentType),
	}, nil
}

// Read returns the full content of an object.
func (a *Adapter) Read(ctx context.Context, p string) ([]byte, error) {
	start := time.Now()

	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey(p)),
	})
	if err != nil {
		metrics.RecordBackendOp("s3", "get_object", time.Since(start), false)
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", fsadapter.ErrNotFound, p)
		}
		return nil, fmt.Errorf("get object %s: %w", p, err)
	}
	defer result.Body.Close()

	content, err := io.ReadAll(result.Body)
	if err != nil {
		metrics.RecordBackendOp("s3", "get_object", time.Since(start), false)
		return nil, fmt.Errorf("read object %s: %w", p, err)
	}

	metrics.RecordBackendOp("s3", "get_object", time.Since(start), true)
	return content, nil
}

// Write creates a new object. S3 PUT overwrites unconditionally, so collision
// detection is a preflight Head; the Head-to-Put window is accepted, matching
// the atomicity the backend itself offers.
func (a *Adapter) Write(ctx context.Context, p string, content []byte) error {
	if _, err := a.Metadata(ctx, p); err == nil {
		return fmt.Errorf("%w: %s", fsadapter.ErrExists, p)
	} else if !errors.Is(err, fsadapter.ErrNotFound) {
		return err
	}
	return a.put(ctx, p, content)
}

// Update overwrites an existing object.
func (a *Adapter) Update(ctx context.Context, p string, content []byte) error {
	if _, err := a.Metadata(ctx, p); err != nil {
		return err
	}
	return a.put(ctx, p, content)
}

func (a *Adapter) put(ctx context.Context, p string, content []byte) error {
	start := time.Now()

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(objectKey(p)),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(fsmeta.TypeByPath(p)),
	})
	if err != nil {
		metrics.RecordBackendOp("s3", "put_object", time.Since(start), false)
		return fmt.Errorf("put object %s: %w", p, err)
	}

	metrics.RecordBackendOp("s3", "put_object", time.Since(start), true)
	logging.Debug("S3 put object", zap.String("key", p), zap.Int("size", len(content)))
	return nil
}

// Rename is copy-then-delete; S3 has no native move.
func (a *Adapter) Rename(ctx context.Context, oldPath, newPath string) error {
	if _, err := a.Metadata(ctx, newPath); err == nil {
		return fmt.Errorf("%w: %s", fsadapter.ErrExists, newPath)
	} else if !errors.Is(err, fsadapter.ErrNotFound) {
		return err
	}

	start := time.Now()
	_, err := a.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(a.bucket),
		Key:        aws.String(objectKey(newPath)),
		CopySource: aws.String(a.bucket + "/" + objectKey(oldPath)),
	})
	if err != nil {
		metrics.RecordBackendOp("s3", "copy_object", time.Since(start), false)
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", fsadapter.ErrNotFound, oldPath)
		}
		return fmt.Errorf("copy %s -> %s: %w", oldPath, newPath, err)
	}
	metrics.RecordBackendOp("s3", "copy_object", time.Since(start), true)

	if err := a.deleteObject(ctx, oldPath); err != nil {
		return fmt.Errorf("remove source after copy %s: %w", oldPath, err)
	}

	logging.Debug("S3 rename", zap.String("old", oldPath), zap.String("new", newPath))
	return nil
}

// Delete removes an object.
func (a *Adapter) Delete(ctx context.Context, p string) error {
	if _, err := a.Metadata(ctx, p); err != nil {
		return err
	}
	return a.deleteObject(ctx, p)
}

func (a *Adapter) deleteObject(ctx context.Context, p string) error {
	start := time.Now()

	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey(p)),
	})
	if err != nil {
		metrics.RecordBackendOp("s3", "delete_object", time.Since(start), false)
		return fmt.Errorf("delete %s: %w", p, err)
	}

	metrics.RecordBackendOp("s3", "delete_object", time.Since(start), true)
	logging.Debug("S3 delete object", zap.String("key", p))
	return nil
}

// Type returns "s3".
func (a *Adapter) Type() string { return "s3" }

// Close is a no-op for S3 adapters.
func (a *Adapter) Close() error { return nil }

// isNotFound classifies S3 missing-key errors across the shapes the SDK
// returns them in (typed errors for GET, generic 404 APIError for HEAD).
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
