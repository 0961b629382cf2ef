// Package blobstore abstracts the cached-model blob namespace.
//
// Backends:
//   - LocalStore: local filesystem (atomic rename writes)
//   - MemoryStore: in-memory, for tests
//   - minio.Store: MinIO / S3-compatible object storage
//   - s3.Store: AWS S3
//
// The pagestash store itself only lists and deletes blobs under the
// "model/" prefix during WipeAllData; everything else is host territory.
package blobstore
