package progress

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// DefaultDescription labels the download bar.
const DefaultDescription = "DL Progress"

// Options configures the progress reporter.
type Options struct {
	// TotalFiles is the number of files in the batch.
	TotalFiles int

	// Workers is the number of parallel workers (for display).
	Workers int

	// Destination is the output directory (for display).
	Destination string

	// Description labels the bar.
	// Default: DefaultDescription
	Description string

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// Throttle limits how often the bar is redrawn.
	// Default: 100ms
	Throttle time.Duration
}

// Reporter tracks a batch of file transfers and renders a file-count bar.
// A nil *Reporter is valid and reports nothing.
type Reporter struct {
	opts Options
	bar  *progressbar.ProgressBar

	mu             sync.Mutex
	completedFiles atomic.Int32
	failedFiles    atomic.Int32
	inProgress     atomic.Int32
	completedBytes atomic.Int64
	startTime      time.Time
	stopped        bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Description == "" {
		opts.Description = DefaultDescription
	}
	if opts.Throttle == 0 {
		opts.Throttle = 100 * time.Millisecond
	}

	return &Reporter{opts: opts}
}

// Start prints the header and draws the bar.
func (r *Reporter) Start() {
	if r == nil {
		return
	}
	r.startTime = time.Now()

	fmt.Fprintf(r.opts.Output, "[eccofetch] Downloading %d files to %s | Workers: %d\n",
		r.opts.TotalFiles,
		r.opts.Destination,
		r.opts.Workers,
	)

	r.bar = progressbar.NewOptions(r.opts.TotalFiles,
		progressbar.OptionSetDescription(r.opts.Description),
		progressbar.OptionSetWriter(r.opts.Output),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(r.opts.Throttle),
	)
}

// Stop finishes the bar and prints a summary. It is safe to call more than
// once.
func (r *Reporter) Stop() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	if r.bar != nil {
		r.bar.Close()
	}
	r.printFinalStatus()
}

// FileStarted marks a file as in progress.
func (r *Reporter) FileStarted() {
	if r == nil {
		return
	}
	r.inProgress.Add(1)
}

// FileCompleted marks a file as done. size is the number of bytes
// transferred, zero when the file was already present.
func (r *Reporter) FileCompleted(size int64) {
	if r == nil {
		return
	}
	r.completedBytes.Add(size)
	r.completedFiles.Add(1)
	r.inProgress.Add(-1)
	if r.bar != nil {
		r.bar.Add(1)
	}
}

// FileFailed marks a file as failed (removes from in-progress).
func (r *Reporter) FileFailed() {
	if r == nil {
		return
	}
	r.failedFiles.Add(1)
	r.inProgress.Add(-1)
}

// Completed returns the number of completed files and bytes.
func (r *Reporter) Completed() (files int, bytes int64) {
	if r == nil {
		return 0, 0
	}
	return int(r.completedFiles.Load()), r.completedBytes.Load()
}

// printFinalStatus outputs the final status.
func (r *Reporter) printFinalStatus() {
	completed := r.completedBytes.Load()
	duration := time.Since(r.startTime)
	avgSpeed := float64(completed) / max(duration.Seconds(), 0.001)

	fmt.Fprintf(r.opts.Output, "\n[eccofetch] Files: %d completed | %d failed | %s transferred\n",
		r.completedFiles.Load(),
		r.failedFiles.Load(),
		formatBytes(completed),
	)
	fmt.Fprintf(r.opts.Output, "[eccofetch] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration),
		formatBytes(int64(avgSpeed)),
	)
}

// formatBytes formats bytes with binary units, e.g. "1.5 KiB".
func formatBytes(b int64) string {
	return humanize.IBytes(uint64(max(b, 0)))
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

// FormatDuration is exported for use by other packages.
func FormatDuration(d time.Duration) string {
	return formatDuration(d)
}

// GB is the unit disk-space decisions are reported in.
const GB = 1 << 30

// ParseBytes parses a human-readable byte string such as "256MB" or
// "1.5 TiB". Units are binary; "KB" and "KiB" both mean 1024.
func ParseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(binaryUnits(s))
	if err != nil {
		return 0, fmt.Errorf("invalid byte string %q: %w", s, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("invalid byte string %q: too large", s)
	}
	return int64(n), nil
}

// binaryUnits rewrites decimal unit names to their binary forms ("GB" and
// "G" become "GIB") so humanize reads them as powers of 1024.
func binaryUnits(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")
	s = strings.TrimSuffix(s, "I")
	if s != "" && strings.ContainsRune("KMGTPE", rune(s[len(s)-1])) {
		s += "IB"
	}
	return s
}
