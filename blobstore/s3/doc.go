// Package s3 provides a blobstore.BlobStore backed by AWS S3, for hosts that
// keep their cached-model blobs in S3 rather than on local disk.
package s3
