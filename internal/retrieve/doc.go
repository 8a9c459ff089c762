// Package retrieve downloads granules to local disk or opens them for
// remote reading.
//
// A [Downloader] writes objects from a [store.Store] into a directory. Each
// file is streamed to "<name>.part" and renamed once complete; a file that
// already exists is returned without any I/O unless the download is forced.
//
// [Downloader.DownloadMany] hands the batch to a [Policy]:
//
//   - [ParallelThenSequential] runs a bounded worker pool and, when any file
//     fails, repeats the whole batch one file at a time
//   - [Sequential] downloads in order and stops at the first failure
//
// Paths always come back in the order of the input references.
//
// A [Retriever] ties this to a catalog query. Its results are a [Result],
// which reports a single item as a scalar.
package retrieve
