// Package refs reads kerchunk reference files, which describe a dataset as
// a map from zarr keys to either inline data or byte ranges inside granules
// in object storage.
//
// Reference files live under a root directory as
// MZZ_<GRID>_<TIMERES>/<ShortName>.json; [ResolvePath] finds the file for a
// dataset and [Load] parses it. [Map.Get] returns a key's bytes, reading
// remote ranges through a [RangeReader] such as the object store's BlobStore.
//
// Only the bytes are exposed; decoding zarr chunks is left to the caller.
package refs
