package dataset

import (
	"strings"
)

// Resolution is the temporal resolution (or static kind) of a dataset.
type Resolution string

const (
	Unknown      Resolution = ""
	Monthly      Resolution = "MONTHLY"
	Daily        Resolution = "DAILY"
	Snapshot     Resolution = "SNAPSHOT"
	Geometry     Resolution = "GEOMETRY"
	MixingCoeffs Resolution = "MIXING_COEFFS"
)

// timeVarying maps the TIMERES field to its resolution.
var timeVarying = map[string]Resolution{
	"MONTHLY":  Monthly,
	"DAILY":    Daily,
	"SNAPSHOT": Snapshot,
}

// ID is a parsed dataset identifier.
type ID struct {
	Raw        string
	Grid       string
	Resolution Resolution
}

// Parse parses a ShortName. Identifiers that do not follow the grammar are
// still returned with Resolution Unknown so they can be queried as opaque
// tokens.
func Parse(shortName string) ID {
	id := ID{Raw: shortName}
	fields := strings.Split(shortName, "_")

	switch {
	case strings.Contains(shortName, "GEOMETRY"):
		id.Resolution = Geometry
		if len(fields) >= 2 {
			id.Grid = fields[len(fields)-2]
		}
		return id
	case strings.Contains(shortName, "MIX_COEFFS"):
		id.Resolution = MixingCoeffs
		if len(fields) >= 2 {
			id.Grid = fields[len(fields)-2]
		}
		return id
	}

	// TIMERES is always the second to last field; the version follows it.
	if len(fields) < 3 {
		return id
	}
	res, ok := timeVarying[fields[len(fields)-2]]
	if !ok {
		return id
	}
	id.Resolution = res
	id.Grid = fields[len(fields)-3]
	return id
}

// String returns the raw ShortName.
func (id ID) String() string {
	return id.Raw
}

// IsAggregate reports whether the dataset holds time-averaged (monthly or
// daily mean) granules.
func (id ID) IsAggregate() bool {
	return id.Resolution == Monthly || id.Resolution == Daily
}

// IsSnapshot reports whether the dataset holds instantaneous snapshots.
func (id ID) IsSnapshot() bool {
	return id.Resolution == Snapshot
}

// IsStatic reports whether the dataset has no time dimension.
func (id ID) IsStatic() bool {
	return id.Resolution == Geometry || id.Resolution == MixingCoeffs
}

// IsLatLon reports whether the dataset is on a regular lat-lon grid
// (e.g. 05DEG) rather than the native LLC grid.
func (id ID) IsLatLon() bool {
	return strings.Contains(id.Grid, "DEG")
}
