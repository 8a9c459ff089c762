package dataset

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the layout of a full date in catalog queries.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for dates that are not YYYY, YYYY-MM or
// YYYY-MM-DD, or for ranges that end before they start.
var ErrInvalidDate = errors.New("dataset: invalid date")

const day = 24 * time.Hour

// Range is a normalised, inclusive date range ready for a catalog query.
type Range struct {
	Start time.Time
	End   time.Time

	// SingleDay is set for monthly and daily datasets when the request spans
	// at most one day. The query result is then reduced to the granule
	// nearest Start.
	SingleDay bool
}

// Temporal returns the catalog temporal filter, "start,end".
func (r Range) Temporal() string {
	return r.Start.Format(DateLayout) + "," + r.End.Format(DateLayout)
}

// AdjustDates expands start and end to full dates and applies the shifts for
// the dataset's resolution:
//   - monthly and daily datasets drop the granule ending on the start date
//     unless the range covers a single day
//   - snapshot datasets get one extra day on the end so budgets close
func AdjustDates(id ID, start, end string) (Range, error) {
	s, err := parseStart(start)
	if err != nil {
		return Range{}, err
	}
	e, err := parseEnd(end)
	if err != nil {
		return Range{}, err
	}
	if e.Before(s) {
		return Range{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalidDate, end, start)
	}

	r := Range{Start: s, End: e}

	switch {
	case id.IsAggregate():
		if e.Sub(s) > day {
			r.Start = s.AddDate(0, 0, 1)
		} else {
			r.SingleDay = true
		}
	case id.IsSnapshot():
		r.End = e.AddDate(0, 0, 1)
	}

	return r, nil
}

// ParseDate parses a YYYY, YYYY-MM or YYYY-MM-DD date to the first day it
// covers.
func ParseDate(s string) (time.Time, error) {
	return parseStart(s)
}

func parseStart(s string) (time.Time, error) {
	switch len(s) {
	case 4:
		return parse("2006", s)
	case 7:
		return parse("2006-01", s)
	case 10:
		return parse(DateLayout, s)
	default:
		return time.Time{}, fmt.Errorf("%w: %q (want YYYY, YYYY-MM or YYYY-MM-DD)", ErrInvalidDate, s)
	}
}

func parseEnd(s string) (time.Time, error) {
	t, err := parseStart(s)
	if err != nil {
		return time.Time{}, err
	}
	switch len(s) {
	case 4:
		return t.AddDate(1, 0, -1), nil
	case 7:
		return t.AddDate(0, 1, -1), nil
	default:
		return t, nil
	}
}

func parse(layout, s string) (time.Time, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}
	return t, nil
}
