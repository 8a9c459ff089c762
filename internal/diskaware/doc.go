// Package diskaware picks download or remote access for a set of datasets
// based on local free space.
//
// [Dispatcher.Plan] queries the catalog for every dataset, sums the sizes of
// granules that are not already on disk under Root/<id>, and compares the
// total with MaxAvailFrac of the space free at Root. If it fits, every
// dataset is downloaded; otherwise every dataset is opened remotely. The
// decision is global, never per dataset.
//
// Free space comes from a [FreeSpaceProvider]. [StatfsProvider] queries the
// filesystem, walking up from Root to the nearest directory that exists;
// [Static] reports a fixed value, which the CLI exposes as --free-space.
package diskaware
