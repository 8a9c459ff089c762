package dataset

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		grid string
		res  Resolution
	}{
		{"ECCO_L4_SSH_LLC0090GRID_MONTHLY_V4R4", "LLC0090GRID", Monthly},
		{"ECCO_L4_TEMP_SALINITY_05DEG_DAILY_V4R4", "05DEG", Daily},
		{"ECCO_L4_OCEAN_3D_TEMPERATURE_FLUX_LLC0090GRID_SNAPSHOT_V4R4", "LLC0090GRID", Snapshot},
		{"ECCO_L4_GEOMETRY_LLC0090GRID_V4R4", "LLC0090GRID", Geometry},
		{"ECCO_L4_GEOMETRY_05DEG_V4R4", "05DEG", Geometry},
		{"ECCO_L4_OCEAN_3D_MIX_COEFFS_LLC0090GRID_V4R4", "LLC0090GRID", MixingCoeffs},
		{"SOMETHING_ELSE", "", Unknown},
		{"", "", Unknown},
	}

	for _, tt := range tests {
		id := Parse(tt.in)
		if id.Grid != tt.grid || id.Resolution != tt.res {
			t.Errorf("Parse(%q) = {%q, %q}, want {%q, %q}", tt.in, id.Grid, id.Resolution, tt.grid, tt.res)
		}
		if id.String() != tt.in {
			t.Errorf("String() = %q, want %q", id.String(), tt.in)
		}
	}
}

func TestParsePredicates(t *testing.T) {
	daily := Parse("ECCO_L4_TEMP_SALINITY_05DEG_DAILY_V4R4")
	if !daily.IsAggregate() || daily.IsSnapshot() || daily.IsStatic() || !daily.IsLatLon() {
		t.Errorf("unexpected predicates for %v", daily)
	}

	snap := Parse("ECCO_L4_SSH_LLC0090GRID_SNAPSHOT_V4R4")
	if snap.IsAggregate() || !snap.IsSnapshot() || snap.IsLatLon() {
		t.Errorf("unexpected predicates for %v", snap)
	}

	geom := Parse("ECCO_L4_GEOMETRY_LLC0090GRID_V4R4")
	if !geom.IsStatic() || geom.IsAggregate() {
		t.Errorf("unexpected predicates for %v", geom)
	}
}

func TestAdjustDates(t *testing.T) {
	monthly := Parse("ECCO_L4_SSH_LLC0090GRID_MONTHLY_V4R4")
	daily := Parse("ECCO_L4_SSH_LLC0090GRID_DAILY_V4R4")
	snapshot := Parse("ECCO_L4_SSH_LLC0090GRID_SNAPSHOT_V4R4")
	geometry := Parse("ECCO_L4_GEOMETRY_LLC0090GRID_V4R4")

	tests := []struct {
		name      string
		id        ID
		start     string
		end       string
		temporal  string
		singleDay bool
	}{
		{"monthly year", monthly, "2000", "2000", "2000-01-02,2000-12-31", false},
		{"monthly month", monthly, "2000-02", "2000-02", "2000-02-02,2000-02-29", false},
		{"monthly single day", monthly, "2000-02-15", "2000-02-15", "2000-02-15,2000-02-15", true},
		{"daily two days", daily, "2000-02-15", "2000-02-16", "2000-02-15,2000-02-16", true},
		{"daily three days", daily, "2000-02-15", "2000-02-17", "2000-02-16,2000-02-17", false},
		{"snapshot month", snapshot, "1992-01", "1992-12", "1992-01-01,1993-01-01", false},
		{"snapshot single day", snapshot, "1992-01-01", "1992-01-01", "1992-01-01,1992-01-02", false},
		{"geometry", geometry, "1992", "2017", "1992-01-01,2017-12-31", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := AdjustDates(tt.id, tt.start, tt.end)
			if err != nil {
				t.Fatalf("AdjustDates: %v", err)
			}
			if got := r.Temporal(); got != tt.temporal {
				t.Errorf("Temporal() = %q, want %q", got, tt.temporal)
			}
			if r.SingleDay != tt.singleDay {
				t.Errorf("SingleDay = %v, want %v", r.SingleDay, tt.singleDay)
			}
		})
	}
}

func TestAdjustDatesInvalid(t *testing.T) {
	id := Parse("ECCO_L4_SSH_LLC0090GRID_MONTHLY_V4R4")

	tests := []struct {
		start string
		end   string
	}{
		{"92", "1993"},
		{"1992-1", "1993"},
		{"1992-13", "1993"},
		{"1992-02-30", "1993"},
		{"1993", "1992"},
		{"1992-01-01T00", "1993"},
	}

	for _, tt := range tests {
		_, err := AdjustDates(id, tt.start, tt.end)
		if !errors.Is(err, ErrInvalidDate) {
			t.Errorf("AdjustDates(%q, %q): expected ErrInvalidDate, got %v", tt.start, tt.end, err)
		}
	}
}
