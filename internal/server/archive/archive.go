// Package archive keeps a copy of every manifest an add-on reload
// accepted, so operators can inspect what an add-on published over time.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	sc "github.com/dmitrijs2005/addonkeeper/internal/server/config"
)

// Archive stores sealed manifest snapshots.
type Archive interface {
	Put(ctx context.Context, accountID, addonID, hash string, blob []byte) error
}

// Nop drops every snapshot.
type Nop struct{}

func (Nop) Put(context.Context, string, string, string, []byte) error { return nil }

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

// S3Archive writes snapshots to an S3-compatible bucket.
type S3Archive struct {
	config *sc.Config

	mu     sync.Mutex
	client *s3.Client
}

// NewS3Archive returns an archive writing to config.S3Bucket. The client
// is built on first use; a failed build is retried on the next Put.
func NewS3Archive(config *sc.Config) *S3Archive {
	return &S3Archive{config: config}
}

func (a *S3Archive) getClient(ctx context.Context) (*s3.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(a.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.config.S3RootUser,
			a.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	a.client = newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if a.config.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(a.config.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return a.client, nil
}

// ObjectKey returns the bucket key of a snapshot.
func ObjectKey(accountID, addonID, hash string) string {
	return fmt.Sprintf("manifests/%s/%s/%s.blob", accountID, addonID, strings.ReplaceAll(hash, ":", "/"))
}

// Put uploads blob under ObjectKey(accountID, addonID, hash).
func (a *S3Archive) Put(ctx context.Context, accountID, addonID, hash string, blob []byte) error {
	client, err := a.getClient(ctx)
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.config.S3Bucket),
		Key:         aws.String(ObjectKey(accountID, addonID, hash)),
		Body:        bytes.NewReader(blob),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}
