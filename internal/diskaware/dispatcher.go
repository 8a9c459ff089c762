package diskaware

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/ligustah/eccofetch/internal/catalog"
	"github.com/ligustah/eccofetch/internal/progress"
	"github.com/ligustah/eccofetch/internal/retrieve"
	"github.com/ligustah/eccofetch/internal/store"
)

// Fraction limits.
const (
	DefaultMaxAvailFrac = 0.5
	MaxAvailFracLimit   = 0.9
)

// Mode is how a dataset was retrieved.
type Mode string

const (
	ModeDownload Mode = "download"
	ModeOpen     Mode = "open"
)

// Options configures a dispatch.
type Options struct {
	// Root is the download root; files go to Root/<id>.
	// Default: retrieve.DefaultRoot()
	Root string

	// MaxAvailFrac is the share of free space a download may use. It is
	// clamped to [0, MaxAvailFracLimit].
	MaxAvailFrac float64

	// Interval filters snapshot datasets. Unset resolves to daily when any
	// dataset is daily, else monthly.
	Interval catalog.Interval

	// Force re-downloads files that already exist. It does not change the
	// size estimate.
	Force bool

	// Policy sequences downloads.
	// Default: retrieve.ParallelThenSequential
	Policy retrieve.Policy
}

// Plan is the outcome of size estimation.
type Plan struct {
	Mode Mode `json:"mode"`

	// Required is the number of bytes still to download.
	Required uint64 `json:"required"`

	// Free is the space available at Root.
	Free uint64 `json:"free"`

	// MaxAvailFrac is the clamped fraction the decision used.
	MaxAvailFrac float64 `json:"max_avail_frac"`

	// Refs holds each dataset's references, in catalog order.
	Refs map[string][]string `json:"refs"`
}

// Retrieval is the result for one dataset. Exactly one of Paths and Files
// is set, according to Mode.
type Retrieval struct {
	Mode  Mode
	Paths retrieve.Result[string]
	Files retrieve.Result[*store.RemoteFile]
}

// MarshalJSON encodes the retrieval as {"mode": ..., "result": ...}.
func (r Retrieval) MarshalJSON() ([]byte, error) {
	var result any = r.Paths
	if r.Mode == ModeOpen {
		result = r.Files
	}
	return json.Marshal(struct {
		Mode   Mode `json:"mode"`
		Result any  `json:"result"`
	}{r.Mode, result})
}

// Close closes any open handles.
func (r Retrieval) Close() error {
	var firstErr error
	for _, f := range r.Files.Items() {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dispatcher chooses between downloading and remote access for a set of
// datasets based on local free space.
type Dispatcher struct {
	catalog    retrieve.Catalog
	store      store.Store
	downloader *retrieve.Downloader
	free       FreeSpaceProvider
	log        logrus.FieldLogger
}

// New creates a Dispatcher. A nil free uses StatfsProvider.
func New(c retrieve.Catalog, s store.Store, free FreeSpaceProvider, opts retrieve.Options) *Dispatcher {
	if free == nil {
		free = StatfsProvider{}
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Dispatcher{
		catalog:    c,
		store:      s,
		downloader: retrieve.NewDownloader(s, opts),
		free:       free,
		log:        opts.Log,
	}
}

// ClampFrac limits frac to [0, MaxAvailFracLimit].
func ClampFrac(frac float64) float64 {
	return min(max(frac, 0), MaxAvailFracLimit)
}

// Plan queries every dataset, sums the sizes of granules not yet present
// locally and decides on a mode. The decision covers all datasets together.
func (d *Dispatcher) Plan(ctx context.Context, ids []string, start, end string, opts Options) (*Plan, error) {
	if opts.Root == "" {
		opts.Root = retrieve.DefaultRoot()
	}
	frac := ClampFrac(opts.MaxAvailFrac)
	interval := catalog.ResolveInterval(ids, opts.Interval)
	fs := d.downloader.Fs()

	plan := &Plan{
		MaxAvailFrac: frac,
		Refs:         make(map[string][]string, len(ids)),
	}

	for _, id := range ids {
		refs, err := d.catalog.Query(ctx, id, start, end, interval)
		if err != nil {
			return nil, err
		}
		plan.Refs[id] = refs

		dir := retrieve.DatasetDir(opts.Root, id)
		for _, ref := range refs {
			// A forced re-download replaces a file in place, so files on
			// disk never add to the requirement.
			local := filepath.Join(dir, store.Basename(ref))
			exists, err := afero.Exists(fs, local)
			if err != nil {
				return nil, fmt.Errorf("diskaware: stat %s: %w", local, err)
			}
			if exists {
				continue
			}
			info, err := d.store.Info(ctx, ref)
			if err != nil {
				return nil, &retrieve.TransferError{Ref: ref, Err: err}
			}
			plan.Required += uint64(info.Size)
		}
	}

	free, err := d.free.Free(opts.Root)
	if err != nil {
		return nil, err
	}
	plan.Free = free

	plan.Mode = ModeOpen
	if float64(plan.Required) <= frac*float64(free) {
		plan.Mode = ModeDownload
	}

	var pct float64
	if free > 0 {
		pct = float64(plan.Required) / float64(free) * 100
	}
	d.log.WithFields(logrus.Fields{
		"required_gb":    fmt.Sprintf("%.2f", float64(plan.Required)/progress.GB),
		"percent_free":   fmt.Sprintf("%.1f", pct),
		"free_gb":        fmt.Sprintf("%.2f", float64(free)/progress.GB),
		"max_avail_frac": frac,
		"mode":           plan.Mode,
	}).Info("Disk-aware retrieval decided")

	return plan, nil
}

// Dispatch plans and then downloads or opens every dataset. Downloads go to
// Root/<id>, which is created.
func (d *Dispatcher) Dispatch(ctx context.Context, ids []string, start, end string, opts Options) (map[string]Retrieval, error) {
	if opts.Root == "" {
		opts.Root = retrieve.DefaultRoot()
	}

	plan, err := d.Plan(ctx, ids, start, end, opts)
	if err != nil {
		return nil, err
	}
	return d.Execute(ctx, plan, opts)
}

// Execute carries out plan. On failure, handles opened so far are closed.
func (d *Dispatcher) Execute(ctx context.Context, plan *Plan, opts Options) (map[string]Retrieval, error) {
	if opts.Root == "" {
		opts.Root = retrieve.DefaultRoot()
	}
	policy := opts.Policy
	if policy == nil {
		policy = retrieve.ParallelThenSequential{Log: d.log}
	}

	out := make(map[string]Retrieval, len(plan.Refs))
	fail := func(err error) (map[string]Retrieval, error) {
		for _, r := range out {
			r.Close()
		}
		return nil, err
	}

	for id, refs := range plan.Refs {
		switch plan.Mode {
		case ModeDownload:
			dir := retrieve.DatasetDir(opts.Root, id)
			if err := d.downloader.Fs().MkdirAll(dir, 0755); err != nil {
				return fail(fmt.Errorf("diskaware: create %s: %w", dir, err))
			}
			paths, err := d.downloader.DownloadMany(ctx, refs, dir, policy, opts.Force)
			if err != nil {
				return fail(err)
			}
			out[id] = Retrieval{Mode: ModeDownload, Paths: retrieve.Collapse(paths)}
		default:
			files, err := retrieve.OpenMany(ctx, d.store, refs)
			if err != nil {
				return fail(err)
			}
			out[id] = Retrieval{Mode: ModeOpen, Files: retrieve.Collapse(files)}
		}
	}

	return out, nil
}
