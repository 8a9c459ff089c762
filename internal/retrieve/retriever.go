package retrieve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ligustah/eccofetch/internal/catalog"
	"github.com/ligustah/eccofetch/internal/progress"
	"github.com/ligustah/eccofetch/internal/store"
)

// Catalog resolves a dataset and date range to granule references.
type Catalog interface {
	Query(ctx context.Context, id, start, end string, interval catalog.Interval) ([]string, error)
}

// DefaultRoot returns the directory datasets are downloaded under when no
// root is configured: ~/Downloads/ECCO_V4r4_PODAAC.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, "Downloads", "ECCO_V4r4_PODAAC")
}

// DatasetDir returns the directory a dataset is downloaded to.
func DatasetDir(root, id string) string {
	if root == "" {
		root = DefaultRoot()
	}
	return filepath.Join(root, id)
}

// GetOptions configures Retriever.Get.
type GetOptions struct {
	// Root is the download root; files go to Root/<id>.
	// Default: DefaultRoot()
	Root string

	// Force re-downloads files that already exist.
	Force bool

	// Interval filters snapshot datasets.
	Interval catalog.Interval

	// Policy sequences download attempts.
	// Default: ParallelThenSequential with DefaultWorkers()
	Policy Policy
}

// Retriever combines a catalog query with download or remote open.
type Retriever struct {
	catalog    Catalog
	store      store.Store
	downloader *Downloader
	log        logrus.FieldLogger
}

// NewRetriever creates a Retriever. Downloads use opts; Open reads through
// the same store.
func NewRetriever(c Catalog, s store.Store, opts Options) *Retriever {
	d := NewDownloader(s, opts)
	return &Retriever{
		catalog:    c,
		store:      s,
		downloader: d,
		log:        d.opts.Log,
	}
}

// Get downloads the granules of id between start and end into
// Root/<id>, creating the directory, and returns the local paths.
func (r *Retriever) Get(ctx context.Context, id, start, end string, opts GetOptions) (Result[string], error) {
	refs, err := r.catalog.Query(ctx, id, start, end, opts.Interval)
	if err != nil {
		return Result[string]{}, err
	}

	dir := DatasetDir(opts.Root, id)
	if err := r.downloader.Fs().MkdirAll(dir, 0755); err != nil {
		return Result[string]{}, fmt.Errorf("retrieve: create %s: %w", dir, err)
	}

	policy := opts.Policy
	if policy == nil {
		policy = ParallelThenSequential{Log: r.log}
	}

	log := r.log.WithFields(logrus.Fields{
		"dataset":   id,
		"granules":  len(refs),
		"directory": dir,
	})
	log.Info("Downloading granules")

	started := time.Now()
	paths, err := r.downloader.DownloadMany(ctx, refs, dir, policy, opts.Force)
	if err != nil {
		return Result[string]{}, err
	}

	log.WithField("elapsed", progress.FormatDuration(time.Since(started))).Info("Download complete")
	return Collapse(paths), nil
}

// Open opens the granules of id between start and end for remote reading.
// The caller must close the returned handles.
func (r *Retriever) Open(ctx context.Context, id, start, end string, interval catalog.Interval) (Result[*store.RemoteFile], error) {
	refs, err := r.catalog.Query(ctx, id, start, end, interval)
	if err != nil {
		return Result[*store.RemoteFile]{}, err
	}

	files, err := OpenMany(ctx, r.store, refs)
	if err != nil {
		return Result[*store.RemoteFile]{}, err
	}

	r.log.WithFields(logrus.Fields{
		"dataset":  id,
		"granules": len(files),
	}).Info("Opened granules for remote access")
	return Collapse(files), nil
}
