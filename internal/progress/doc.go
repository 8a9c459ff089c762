// Package progress reports download progress.
//
// A [Reporter] tracks one batch of file transfers and draws a file-count bar
// (schollz/progressbar) labelled "DL Progress" on stderr, followed by a
// summary line with the bytes moved and average speed.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    TotalFiles:  len(refs),
//	    Workers:     8,
//	    Destination: dir,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	reporter.FileStarted()
//	reporter.FileCompleted(n)
//
// # Output Format
//
//	[eccofetch] Downloading 12 files to /data/ECCO_L4_SSH_LLC0090GRID_MONTHLY_V4R4 | Workers: 8
//	DL Progress 100% |████████████████████████████████████████| (12/12) [3s]
//	[eccofetch] Files: 12 completed | 0 failed | 1.21 GB transferred
//	[eccofetch] Total time: 3s | Average speed: 412.50 MB/s
//
// [FormatBytes] and [ParseBytes] convert between byte counts and strings
// like "1.5 GB" for flags and log output.
package progress
