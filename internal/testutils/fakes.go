// Package testutils provides shared test infrastructure: fake catalog and
// credential servers, in-memory object stores, and (with the integration
// build tag) a Minio container.
package testutils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"github.com/ligustah/eccofetch/internal/store"
)

// GenerateTestData returns size bytes of a deterministic pattern.
func GenerateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

// Granule is one entry served by FakeCMR.
type Granule struct {
	ShortName string
	Start     time.Time
	End       time.Time

	// Ref is the bucket/key of the direct-storage link. An empty Ref serves
	// the entry without one.
	Ref string
}

// FakeCMR is an in-memory granule search endpoint. Entries are matched by
// ShortName and by overlap with the temporal bounds, sorted by start and
// truncated to page_size, which is how the real service pages.
type FakeCMR struct {
	*httptest.Server

	mu       sync.Mutex
	granules []Granule
	errs     []string
	requests atomic.Int64
	queries  []string
}

// StartFakeCMR starts a FakeCMR serving granules. It is closed when the test
// ends.
func StartFakeCMR(t *testing.T, granules []Granule) *FakeCMR {
	t.Helper()

	f := &FakeCMR{granules: append([]Granule(nil), granules...)}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// URL returns the search endpoint URL.
func (f *FakeCMR) URL() string {
	return f.Server.URL + "/search/granules.json"
}

// FailWith makes every following request answer 400 with the given messages
// in "errors".
func (f *FakeCMR) FailWith(msgs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = msgs
}

// Requests returns the number of requests served.
func (f *FakeCMR) Requests() int {
	return int(f.requests.Load())
}

// Temporals returns the temporal parameter of each request, in order.
func (f *FakeCMR) Temporals() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func (f *FakeCMR) serve(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	q := r.URL.Query()

	f.mu.Lock()
	f.queries = append(f.queries, q.Get("temporal"))
	errs := f.errs
	granules := f.granules
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if len(errs) > 0 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"errors": errs})
		return
	}

	lo, hi, ok := parseTemporal(q.Get("temporal"))
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"errors": []string{"temporal is invalid: " + q.Get("temporal")}})
		return
	}
	pageSize, err := strconv.Atoi(q.Get("page_size"))
	if err != nil || pageSize <= 0 {
		pageSize = 10
	}

	var matched []Granule
	for _, g := range granules {
		if g.ShortName != q.Get("ShortName") {
			continue
		}
		if g.End.Before(lo) || !g.Start.Before(hi) {
			continue
		}
		matched = append(matched, g)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Start.Before(matched[j].Start) })
	if len(matched) > pageSize {
		matched = matched[:pageSize]
	}

	entries := make([]map[string]any, 0, len(matched))
	for _, g := range matched {
		links := []map[string]string{
			{"href": "https://archive.podaac.earthdata.nasa.gov/" + g.Ref, "title": "Download " + g.Ref},
		}
		if g.Ref != "" {
			links = append(links, map[string]string{
				"href":  "s3://" + g.Ref,
				"title": "This link provides direct download access via S3 to the granule",
			})
		}
		entries = append(entries, map[string]any{
			"time_start": g.Start.Format("2006-01-02T15:04:05.000Z"),
			"time_end":   g.End.Format("2006-01-02T15:04:05.000Z"),
			"links":      links,
		})
	}

	json.NewEncoder(w).Encode(map[string]any{"feed": map[string]any{"entry": entries}})
}

// parseTemporal parses "start,end" dates. The end bound is inclusive, so the
// returned hi is the start of the following day.
func parseTemporal(s string) (lo, hi time.Time, ok bool) {
	a, b, found := strings.Cut(s, ",")
	if !found {
		return lo, hi, false
	}
	lo, err := time.Parse("2006-01-02", a)
	if err != nil {
		return lo, hi, false
	}
	hi, err = time.Parse("2006-01-02", b)
	if err != nil {
		return lo, hi, false
	}
	return lo, hi.AddDate(0, 0, 1), true
}

// CredentialServer serves temporary S3 credentials and counts requests.
type CredentialServer struct {
	*httptest.Server
	Requests atomic.Int64
}

// StartCredentialServer serves body with status on every request.
func StartCredentialServer(t *testing.T, status int, body string) *CredentialServer {
	t.Helper()

	s := &CredentialServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

// MemStore seeds in-memory buckets with objects keyed by "bucket/key" and
// returns an opener for them. Unknown bucket names open empty buckets.
func MemStore(t *testing.T, objects map[string][]byte) store.BucketOpener {
	t.Helper()
	ctx := context.Background()

	var mu sync.Mutex
	buckets := make(map[string]*blob.Bucket)
	get := func(name string) *blob.Bucket {
		mu.Lock()
		defer mu.Unlock()
		b, ok := buckets[name]
		if !ok {
			b = memblob.OpenBucket(nil)
			buckets[name] = b
		}
		return b
	}

	for ref, data := range objects {
		name, key, err := store.ParseRef(ref)
		if err != nil {
			t.Fatalf("seed %s: %v", ref, err)
		}
		if err := get(name).WriteAll(ctx, key, data, nil); err != nil {
			t.Fatalf("seed %s: %v", ref, err)
		}
	}

	// Every store built from the opener shares these buckets, and closing
	// the store closes them, so use one store per test.
	return func(_ context.Context, name string) (*blob.Bucket, error) {
		return get(name), nil
	}
}
