package retrieve

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// BatchFunc runs one download attempt over refs with the given number of
// workers. workers == 1 downloads in order and stops at the first error.
type BatchFunc func(ctx context.Context, refs []string, workers int) ([]string, error)

// Policy decides how download attempts are sequenced.
type Policy interface {
	Run(ctx context.Context, refs []string, batch BatchFunc) ([]string, error)
}

// ParallelThenSequential downloads with a bounded pool and, if anything
// fails, downloads the whole batch again one file at a time. Files that
// completed in the parallel attempt are skipped by the second one unless
// the download is forced. The sequential error is the one returned.
type ParallelThenSequential struct {
	// Workers bounds the pool. Default: DefaultWorkers()
	Workers int

	Log logrus.FieldLogger
}

// Run implements Policy.
func (p ParallelThenSequential) Run(ctx context.Context, refs []string, batch BatchFunc) ([]string, error) {
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	paths, err := batch(ctx, refs, workers)
	if err == nil {
		return paths, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	entry := log.WithError(err).WithField("refs", len(refs))
	if merr, ok := err.(*multierror.Error); ok {
		entry = entry.WithField("failures", merr.Len())
	}
	entry.Warn("Parallel download failed, retrying sequentially")

	return batch(ctx, refs, 1)
}

// Sequential downloads one file at a time and stops at the first error.
type Sequential struct{}

// Run implements Policy.
func (Sequential) Run(ctx context.Context, refs []string, batch BatchFunc) ([]string, error) {
	return batch(ctx, refs, 1)
}
