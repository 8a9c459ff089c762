package retrieve

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/ligustah/eccofetch/internal/progress"
	"github.com/ligustah/eccofetch/internal/store"
)

// partSuffix marks a file that is still being written.
const partSuffix = ".part"

// DefaultWorkers is the worker count used when none is configured.
func DefaultWorkers() int {
	return min(32, runtime.NumCPU()+4)
}

// Options configures a Downloader.
type Options struct {
	// Fs is the local filesystem downloads are written to.
	// Default: afero.NewOsFs()
	Fs afero.Fs

	// Progress enables the per-batch progress bar.
	Progress bool

	// ProgressOutput is where the bar is drawn.
	// Default: os.Stderr
	ProgressOutput io.Writer

	Log logrus.FieldLogger
}

// Downloader copies objects from a store to local directories.
type Downloader struct {
	store store.Store
	opts  Options
}

// NewDownloader creates a Downloader reading from s.
func NewDownloader(s store.Store, opts Options) *Downloader {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.ProgressOutput == nil {
		opts.ProgressOutput = os.Stderr
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Downloader{store: s, opts: opts}
}

// Fs returns the filesystem downloads are written to.
func (d *Downloader) Fs() afero.Fs {
	return d.opts.Fs
}

// DownloadOne downloads ref into outputDir and returns the local path. An
// existing file is returned as is unless force is set. The object is
// written to a ".part" file first and renamed when complete, so a failed
// transfer never leaves a file that looks finished.
func (d *Downloader) DownloadOne(ctx context.Context, ref, outputDir string, force bool) (string, error) {
	path, _, err := d.downloadOne(ctx, ref, outputDir, force)
	return path, err
}

func (d *Downloader) downloadOne(ctx context.Context, ref, outputDir string, force bool) (string, int64, error) {
	fs := d.opts.Fs

	ok, err := afero.DirExists(fs, outputDir)
	if err != nil {
		return "", 0, &TransferError{Ref: ref, Err: err}
	}
	if !ok {
		return "", 0, fmt.Errorf("%w: %s", ErrOutputDirMissing, outputDir)
	}

	target := filepath.Join(outputDir, store.Basename(ref))
	if !force {
		exists, err := afero.Exists(fs, target)
		if err != nil {
			return "", 0, &TransferError{Ref: ref, Err: err}
		}
		if exists {
			d.opts.Log.WithField("path", target).Debug("Already downloaded, skipping")
			return target, 0, nil
		}
	}

	part := target + partSuffix
	f, err := fs.Create(part)
	if err != nil {
		return "", 0, &TransferError{Ref: ref, Err: err}
	}

	n, err := d.store.Download(ctx, ref, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fs.Remove(part)
		return "", 0, &TransferError{Ref: ref, Err: err}
	}

	if err := fs.Rename(part, target); err != nil {
		fs.Remove(part)
		return "", 0, &TransferError{Ref: ref, Err: err}
	}

	return target, n, nil
}

// DownloadMany downloads refs into outputDir following policy. The returned
// paths are in the same order as refs.
func (d *Downloader) DownloadMany(ctx context.Context, refs []string, outputDir string, policy Policy, force bool) ([]string, error) {
	if policy == nil {
		policy = ParallelThenSequential{Log: d.opts.Log}
	}
	ok, err := afero.DirExists(d.opts.Fs, outputDir)
	if err != nil {
		return nil, fmt.Errorf("retrieve: stat %s: %w", outputDir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputDirMissing, outputDir)
	}
	return policy.Run(ctx, refs, func(ctx context.Context, refs []string, workers int) ([]string, error) {
		return d.batch(ctx, refs, outputDir, workers, force)
	})
}

// batch runs one download attempt over refs with a bounded worker pool.
// Paths are written by index so output order mirrors input order. With a
// single worker the batch stops at the first failure; otherwise every
// reference is attempted and the failures are returned together.
func (d *Downloader) batch(ctx context.Context, refs []string, outputDir string, workers int, force bool) ([]string, error) {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	workers = min(workers, max(len(refs), 1))

	var reporter *progress.Reporter
	if d.opts.Progress && len(refs) > 0 {
		reporter = progress.NewReporter(progress.Options{
			TotalFiles:  len(refs),
			Workers:     workers,
			Destination: outputDir,
			Output:      d.opts.ProgressOutput,
		})
		reporter.Start()
		defer func() {
			reporter.Stop()
			files, n := reporter.Completed()
			d.opts.Log.WithFields(logrus.Fields{
				"files":   files,
				"bytes":   n,
				"workers": workers,
			}).Debug("Download batch finished")
		}()
	}

	paths := make([]string, len(refs))

	if workers == 1 {
		for i, ref := range refs {
			path, err := d.fetch(ctx, ref, outputDir, force, reporter)
			if err != nil {
				return nil, err
			}
			paths[i] = path
		}
		return paths, nil
	}

	type job struct {
		index int
		ref   string
	}

	var (
		mu   sync.Mutex
		errs *multierror.Error
	)

	jobs := make(chan job, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				path, err := d.fetch(ctx, j.ref, outputDir, force, reporter)
				if err != nil {
					mu.Lock()
					errs = multierror.Append(errs, err)
					mu.Unlock()
					continue
				}
				paths[j.index] = path
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, ref := range refs {
			select {
			case jobs <- job{index: i, ref: ref}:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return paths, nil
}

// fetch downloads a single reference and reports it.
func (d *Downloader) fetch(ctx context.Context, ref, outputDir string, force bool, reporter *progress.Reporter) (string, error) {
	reporter.FileStarted()

	path, n, err := d.downloadOne(ctx, ref, outputDir, force)
	if err != nil {
		reporter.FileFailed()
		return "", err
	}

	reporter.FileCompleted(n)
	return path, nil
}

// OpenMany opens every reference for remote reading. If any open fails, the
// handles opened so far are closed and the error is returned.
func OpenMany(ctx context.Context, s store.Store, refs []string) ([]*store.RemoteFile, error) {
	files := make([]*store.RemoteFile, 0, len(refs))
	for _, ref := range refs {
		f, err := s.Open(ctx, ref)
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return nil, &TransferError{Ref: ref, Err: err}
		}
		files = append(files, f)
	}
	return files, nil
}
