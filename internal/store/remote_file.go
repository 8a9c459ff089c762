package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gocloud.dev/blob"
)

// RemoteFile is an object opened for reading in place. It implements
// io.ReadSeekCloser and io.ReaderAt; sequential reads stream from the
// current offset, ReadAt issues independent range requests.
//
// The context passed to Open is used for all reads.
type RemoteFile struct {
	ctx     context.Context
	ref     string
	bucket  *blob.Bucket
	key     string
	size    int64
	modTime time.Time

	mu     sync.Mutex
	offset int64
	reader *blob.Reader
	closed bool
}

// Name returns the reference the file was opened from.
func (f *RemoteFile) Name() string {
	return f.ref
}

// Size returns the object size in bytes.
func (f *RemoteFile) Size() int64 {
	return f.size
}

// ModTime returns the object's last modification time.
func (f *RemoteFile) ModTime() time.Time {
	return f.modTime
}

// String implements fmt.Stringer.
func (f *RemoteFile) String() string {
	return "s3://" + f.ref
}

// MarshalText renders the file as its reference.
func (f *RemoteFile) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

var errClosed = errors.New("store: file already closed")

// Read implements io.Reader.
func (f *RemoteFile) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, errClosed
	}
	if f.offset >= f.size {
		return 0, io.EOF
	}
	if f.reader == nil {
		r, err := f.bucket.NewRangeReader(f.ctx, f.key, f.offset, -1, nil)
		if err != nil {
			return 0, wrapErr("read", f.ref, err)
		}
		f.reader = r
	}

	n, err := f.reader.Read(p)
	f.offset += int64(n)
	return n, err
}

// ReadAt implements io.ReaderAt. It does not move the Read offset.
func (f *RemoteFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("store: negative offset %d", off)
	}
	if off >= f.size {
		return 0, io.EOF
	}

	length := int64(len(p))
	if off+length > f.size {
		length = f.size - off
	}

	r, err := f.bucket.NewRangeReader(f.ctx, f.key, off, length, nil)
	if err != nil {
		return 0, wrapErr("read", f.ref, err)
	}
	defer r.Close()

	n, err := io.ReadFull(r, p[:length])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker.
func (f *RemoteFile) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.offset + offset
	case io.SeekEnd:
		abs = f.size + offset
	default:
		return 0, fmt.Errorf("store: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("store: negative position %d", abs)
	}

	if abs != f.offset && f.reader != nil {
		f.reader.Close()
		f.reader = nil
	}
	f.offset = abs
	return abs, nil
}

// Close releases the current stream. The bucket stays open; it belongs to
// the BlobStore.
func (f *RemoteFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	if f.reader != nil {
		err := f.reader.Close()
		f.reader = nil
		return err
	}
	return nil
}
