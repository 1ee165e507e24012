package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/chunkstream/blobstore"
	"github.com/hupe1980/chunkstream/blobstore/minio"
	"github.com/hupe1980/chunkstream/blobstore/s3"
)

func openStore(ctx context.Context, cfg storeConfig) (blobstore.BlobStore, error) {
	switch cfg.Type {
	case "", "local":
		if cfg.Root == "" {
			return nil, fmt.Errorf("local store needs --root")
		}
		return blobstore.NewLocalStore(cfg.Root), nil

	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 store needs --bucket")
		}
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
				o.UsePathStyle = true
			}
		})
		return s3.NewStore(client, cfg.Bucket, cfg.Prefix), nil

	case "minio":
		if cfg.Bucket == "" || cfg.Endpoint == "" {
			return nil, fmt.Errorf("minio store needs --bucket and --endpoint")
		}
		endpoint := cfg.Endpoint
		secure := !cfg.Insecure
		// Accept a URL as well as host:port.
		if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
			endpoint = u.Host
			secure = u.Scheme == "https"
		}
		client, err := miniogo.New(endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: secure,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		return minio.NewStore(client, cfg.Bucket, cfg.Prefix), nil

	default:
		return nil, fmt.Errorf("unknown store type %q (want local, s3 or minio)", cfg.Type)
	}
}
