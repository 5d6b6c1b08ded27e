package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"slipway/model"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

type Client struct {
	mc *minio.Client
}

func NewClient(cfg Config) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &Client{mc: mc}, nil
}

// StatArtifact verifies the deployment package exists and returns its size.
func (c *Client) StatArtifact(ctx context.Context, ref model.ArtifactReference) (int64, error) {
	info, err := c.mc.StatObject(ctx, ref.Bucket, ref.Key, minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("stat artifact %s: %w", ref, err)
	}
	return info.Size, nil
}

// PackageURL returns a presigned GET URL for the deployment package, valid
// long enough for every target node to fetch it during the run.
func (c *Client) PackageURL(ctx context.Context, ref model.ArtifactReference, expiry time.Duration) (string, error) {
	u, err := c.mc.PresignedGetObject(ctx, ref.Bucket, ref.Key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign artifact %s: %w", ref, err)
	}
	return u.String(), nil
}

func (c *Client) Healthy(ctx context.Context) error {
	_, err := c.mc.ListBuckets(ctx)
	return err
}
