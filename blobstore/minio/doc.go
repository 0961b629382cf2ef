// Package minio provides a blobstore.BlobStore backed by MinIO or any
// S3-compatible object storage, for hosts that keep their cached-model blobs
// in a shared object store rather than on local disk.
package minio
