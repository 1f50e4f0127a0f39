package nav

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/fundnav/internal/outcome"
)

// DefaultLookbackDays is the query window used when no start date is given.
const DefaultLookbackDays = 365

// DateRange is an inclusive calendar window. A zero bound is sent upstream as
// an empty parameter.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// StartParam returns Start formatted for the upstream query.
func (r DateRange) StartParam() string { return FormatDate(r.Start) }

// EndParam returns End formatted for the upstream query.
func (r DateRange) EndParam() string { return FormatDate(r.End) }

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.StartParam(), r.EndParam())
}

// ResolveRange parses optional YYYY-MM-DD bounds, defaults a missing start to
// lookbackDays before today and a missing end to today, clamps the end to today
// and rejects start > end. Errors are KindValidation.
func ResolveRange(start, end string, today time.Time, lookbackDays int) (DateRange, error) {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	today = Day(today)

	s, err := parseOptionalDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := parseOptionalDate(end)
	if err != nil {
		return DateRange{}, err
	}

	if s.IsZero() {
		s = today.AddDate(0, 0, -lookbackDays)
	}
	if e.IsZero() || e.After(today) {
		e = today
	}
	if s.After(e) {
		return DateRange{}, outcome.NewError(outcome.KindValidation, "start date cannot be later than end date", nil)
	}
	return DateRange{Start: s, End: e}, nil
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

func parseOptionalDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return time.Time{}, outcome.NewError(outcome.KindValidation, "invalid date format, use YYYY-MM-DD", err)
	}
	return t, nil
}
