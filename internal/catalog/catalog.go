package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ligustah/eccofetch/internal/dataset"
	eccohttp "github.com/ligustah/eccofetch/internal/http"
)

// Defaults for Options.
const (
	DefaultURL      = "https://cmr.earthdata.nasa.gov/search/granules.json"
	DefaultPageSize = 2000
)

// DirectAccessMarker identifies the direct-storage link of a granule.
const DirectAccessMarker = "direct download access via S3"

// ErrCatalog is the base error for failed or malformed catalog responses.
var ErrCatalog = errors.New("catalog: query failed")

// Error is a failure reported by the catalog itself. Message is the first
// entry of the response's "errors" array, unmodified.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap makes errors.Is(err, ErrCatalog) hold.
func (e *Error) Unwrap() error {
	return ErrCatalog
}

// Interval selects which snapshot granules are kept.
type Interval string

const (
	Monthly Interval = "monthly"
	Daily   Interval = "daily"
)

// ParseInterval parses "monthly", "daily" or "" (unset).
func ParseInterval(s string) (Interval, error) {
	switch i := Interval(strings.ToLower(s)); i {
	case "", Monthly, Daily:
		return i, nil
	default:
		return "", fmt.Errorf("catalog: invalid snapshot interval %q (want monthly or daily)", s)
	}
}

// ResolveInterval returns requested if set. Otherwise it is Daily when any of
// the identifiers names a daily dataset, else Monthly.
func ResolveInterval(ids []string, requested Interval) Interval {
	if requested != "" {
		return requested
	}
	for _, id := range ids {
		if dataset.Parse(id).Resolution == dataset.Daily {
			return Daily
		}
	}
	return Monthly
}

// Options configures an Engine.
type Options struct {
	// URL of the granule search endpoint. Default: DefaultURL
	URL string

	// PageSize is the number of entries requested per page.
	// Default: DefaultPageSize
	PageSize int

	Log logrus.FieldLogger
}

// Engine queries the catalog.
type Engine struct {
	client *eccohttp.Client
	opts   Options
}

// New creates an Engine. The catalog is public, so client needs no
// authentication.
func New(client *eccohttp.Client, opts Options) *Engine {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Engine{client: client, opts: opts}
}

type response struct {
	Feed   *feed    `json:"feed"`
	Errors []string `json:"errors"`
}

type feed struct {
	Entry []entry `json:"entry"`
}

type entry struct {
	TimeStart string `json:"time_start"`
	TimeEnd   string `json:"time_end"`
	Links     []link `json:"links"`
}

type link struct {
	Href  string `json:"href"`
	Title string `json:"title"`
}

type candidate struct {
	ref   string
	start time.Time
}

// Query returns the direct-storage references of id's granules between start
// and end (YYYY, YYYY-MM or YYYY-MM-DD, inclusive). interval only affects
// snapshot datasets; empty means Monthly.
func (e *Engine) Query(ctx context.Context, id, start, end string, interval Interval) ([]string, error) {
	ds := dataset.Parse(id)
	r, err := dataset.AdjustDates(ds, start, end)
	if err != nil {
		return nil, err
	}

	log := e.opts.Log.WithFields(logrus.Fields{
		"dataset":  id,
		"temporal": r.Temporal(),
	})

	var candidates []candidate
	lower := r.Start
	upper := r.End.Format(dataset.DateLayout)

	for page := 1; ; page++ {
		entries, err := e.page(ctx, id, lower.Format(dataset.DateLayout)+","+upper)
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{"page": page, "entries": len(entries)}).Debug("Catalog page received")

		for _, ent := range entries {
			ref, ok := directRef(ent)
			if !ok {
				continue
			}
			// time_start is only needed for the single-day reduction, so a
			// missing one is tolerated.
			t, _ := time.Parse(time.RFC3339, ent.TimeStart)
			candidates = append(candidates, candidate{ref: ref, start: t})
		}

		if len(entries) < e.opts.PageSize {
			break
		}

		last := entries[len(entries)-1]
		next, err := nextLowerBound(last)
		if err != nil {
			return nil, err
		}
		if !next.After(lower) {
			return nil, fmt.Errorf("%w: page %d did not advance past %s", ErrCatalog, page, lower.Format(dataset.DateLayout))
		}
		if next.After(r.End) {
			break
		}
		lower = next
	}

	if ds.IsAggregate() && r.SingleDay && len(candidates) > 1 {
		candidates = []candidate{nearest(candidates, r.Start)}
	}

	refs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		refs = append(refs, c.ref)
	}

	if ds.IsSnapshot() && ResolveInterval(nil, interval) == Monthly {
		refs = firstOfMonth(refs)
	}

	log.WithField("granules", len(refs)).Info("Catalog query complete")
	return refs, nil
}

// page fetches one page of entries for the temporal filter.
func (e *Engine) page(ctx context.Context, id, temporal string) ([]entry, error) {
	params := url.Values{
		"ShortName": {id},
		"temporal":  {temporal},
		"page_size": {strconv.Itoa(e.opts.PageSize)},
	}

	var resp response
	err := e.client.GetJSON(ctx, e.opts.URL, params, &resp)
	if len(resp.Errors) > 0 {
		return nil, &Error{Message: resp.Errors[0]}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalog, err)
	}
	if resp.Feed == nil {
		return nil, fmt.Errorf("%w: response has neither feed nor errors", ErrCatalog)
	}
	return resp.Feed.Entry, nil
}

// directRef returns the bucket/key of the entry's first direct-storage link.
func directRef(ent entry) (string, bool) {
	for _, l := range ent.Links {
		if strings.Contains(l.Title, DirectAccessMarker) {
			return strings.TrimPrefix(l.Href, "s3://"), true
		}
	}
	return "", false
}

// nextLowerBound is the day after the entry's end date.
func nextLowerBound(last entry) (time.Time, error) {
	ts := last.TimeEnd
	if ts == "" {
		ts = last.TimeStart
	}
	if len(ts) < len(dataset.DateLayout) {
		return time.Time{}, fmt.Errorf("%w: entry without usable time_end %q", ErrCatalog, ts)
	}
	t, err := time.Parse(dataset.DateLayout, ts[:len(dataset.DateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time_end %q: %v", ErrCatalog, ts, err)
	}
	return t.AddDate(0, 0, 1), nil
}

// nearest returns the candidate starting closest to target. Ties keep the
// earlier candidate.
func nearest(candidates []candidate, target time.Time) candidate {
	best := candidates[0]
	bestDist := absDuration(best.start.Sub(target))
	for _, c := range candidates[1:] {
		if d := absDuration(c.start.Sub(target)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

var embeddedDate = regexp.MustCompile(`_([0-9]{4})-([0-9]{2})-([0-9]{2})`)

// firstOfMonth keeps references whose embedded date falls on day 01.
func firstOfMonth(refs []string) []string {
	kept := refs[:0]
	for _, ref := range refs {
		m := embeddedDate.FindStringSubmatch(ref)
		if m != nil && m[3] == "01" {
			kept = append(kept, ref)
		}
	}
	return kept
}
