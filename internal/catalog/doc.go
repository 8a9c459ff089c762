// Package catalog finds granule references in the CMR granule search API.
//
// An [Engine] turns a dataset identifier and a date range into the list of
// direct-storage references ("bucket/key" paths behind "s3://" links) for
// the granules in that range. Dates are normalised with
// [dataset.AdjustDates] first; results larger than one page are fetched by
// moving the temporal lower bound past the last granule of each full page.
//
// Two reductions happen after the query:
//
//   - monthly and daily datasets asked for a single day keep only the
//     granule whose start is nearest the requested date
//   - snapshot datasets with a monthly [Interval] keep only references
//     dated on the first of a month
//
// Errors reported by CMR are returned verbatim as [*Error].
package catalog
