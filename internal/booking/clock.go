package booking

import (
	"fmt"
	"time"
)

// Wall-clock layouts accepted for start/end. RFC 3339 is tried first so an
// explicit offset wins over the operative zone, matching how callers that
// already know their offset expect to be read.
var wallClockLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// normalizedInterval is the time normalizer's output: an absolute interval
// plus the zone used to read and later render it.
type normalizedInterval struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Zone     *time.Location
	ZoneName string
}

// resolveZone picks the operative timezone. Precedence is fixed: explicit
// request value, then the doctor's stored default, then the configured
// fallback.
func resolveZone(requestTZ, doctorTZ, fallbackTZ string) (*time.Location, string, error) {
	name := fallbackTZ
	if doctorTZ != "" {
		name = doctorTZ
	}
	if requestTZ != "" {
		name = requestTZ
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	return loc, name, nil
}

// normalizeInterval parses raw start/end strings as wall-clock times in the
// operative zone and returns absolute instants. It never touches storage;
// both failure modes (unparsable datetime, end <= start) reject the request
// before any side effect.
func normalizeInterval(rawStart, rawEnd, requestTZ, doctorTZ, fallbackTZ string) (*normalizedInterval, error) {
	loc, name, err := resolveZone(requestTZ, doctorTZ, fallbackTZ)
	if err != nil {
		return nil, err
	}

	start, err := parseInZone(rawStart, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: start %q", ErrMalformedTime, rawStart)
	}
	end, err := parseInZone(rawEnd, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: end %q", ErrMalformedTime, rawEnd)
	}

	if !end.After(start) {
		return nil, ErrInvalidInterval
	}

	return &normalizedInterval{
		Start:    start.UTC(),
		End:      end.UTC(),
		Duration: end.Sub(start),
		Zone:     loc,
		ZoneName: name,
	}, nil
}

func parseInZone(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

// isoInZone renders an absolute instant as a zone-local RFC 3339 string,
// presentation only: the stored instant stays zone-independent.
func isoInZone(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}
