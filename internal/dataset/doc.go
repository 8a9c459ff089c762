// Package dataset parses ECCO dataset identifiers (PO.DAAC ShortNames) and
// normalises the date ranges used to query them.
//
// # Identifier Grammar
//
// Identifiers are underscore separated and case sensitive:
//
//	ECCO_L4_<VARIABLES...>_<GRID>_<TIMERES>_<VERSION>   time-varying data
//	ECCO_L4_<...GEOMETRY...>_<GRID>_<VERSION>           grid geometry
//	ECCO_L4_<...MIX_COEFFS...>_<GRID>_<VERSION>         mixing coefficients
//
// TIMERES is one of MONTHLY, DAILY or SNAPSHOT. GRID is the field preceding
// TIMERES (or VERSION for static data), e.g. LLC0090GRID or 05DEG.
//
//	id := dataset.Parse("ECCO_L4_SSH_LLC0090GRID_MONTHLY_V4R4")
//	// id.Grid == "LLC0090GRID", id.Resolution == dataset.Monthly
//
// # Date Ranges
//
// Dates may be given as YYYY, YYYY-MM or YYYY-MM-DD and both ends are
// inclusive. [AdjustDates] expands them to full dates and applies the
// resolution-specific shifts the catalog query relies on.
package dataset
