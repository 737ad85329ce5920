// Package archive provides recording archive implementations.
//
// Implementations:
//   - s3: any S3 compatible object store (AWS, MinIO, LocalStack)
package archive
