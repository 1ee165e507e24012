// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "tiered-storage/")
//
//	client, err := chunkstream.New(store)
//
// # Features
//
//   - HeadObject on Open to size the blob
//   - Ranged GetObject per chunk, so only the requested chunks are transferred
//   - Configurable prefix for multi-tenant isolation
package s3
