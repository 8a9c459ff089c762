// Package store reads granules from object storage.
//
// References have the form "bucket/key", optionally prefixed with "s3://",
// as returned by the catalog. Buckets are opened lazily through a
// [BucketOpener] and cached for the life of the [BlobStore]; access is
// storage-agnostic via gocloud.dev/blob.
//
// # Operations
//
//   - [BlobStore.Info]: object size without reading data
//   - [BlobStore.Open]: a [RemoteFile] for streamed, random-access reads
//   - [BlobStore.Download]: copy the whole object to a writer
//
// # Openers
//
// [S3Opener] builds an AWS SDK v2 client from a credentials provider (e.g.
// Earthdata temporary credentials) and opens buckets with s3blob.
// [URLOpener] opens any gocloud URL, which tests use with mem://.
//
//	opener, err := store.S3Opener(ctx, cred, store.S3Options{Region: "us-west-2"})
//	s := store.New(opener)
//	defer s.Close()
//	f, err := s.Open(ctx, "podaac-ops-cumulus-protected/ECCO_L4_SSH/SSH_1992-01.nc")
package store
