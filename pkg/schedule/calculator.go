package schedule

import (
	"log/slog"
	"slices"
	"time"
)

const daysPerWeek = 7

// Calculator resolves Specs against the timezone database. It holds no
// mutable state and is safe for concurrent use.
type Calculator struct {
	logger *slog.Logger
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithLogger sets the logger used to report degraded timezone lookups.
func WithLogger(logger *slog.Logger) CalculatorOption {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCalculator creates a schedule calculator.
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Next returns the next occurrence of the spec strictly after from, as a UTC
// instant. It never fails for a spec that passed Validate: unknown timezones
// fall back to UTC with a warning.
func (c *Calculator) Next(spec Spec, from time.Time) time.Time {
	loc := c.location(spec.Timezone)
	local := from.In(loc)
	year, month, day := local.Date()

	step := 1
	if spec.Cadence == CadenceWeekly {
		step = daysPerWeek
		// Next occurrence of the preferred weekday on or after today.
		// Week wraparound handled with modulo.
		day += (int(spec.Weekday) - int(local.Weekday()) + daysPerWeek) % daysPerWeek
	}

	next := resolveLocal(year, month, day, spec.Hour, spec.Minute, loc)
	for !next.After(from) {
		day += step
		next = resolveLocal(year, month, day, spec.Hour, spec.Minute, loc)
	}

	return next.UTC()
}

// location resolves an IANA zone identifier, degrading to UTC on failure so
// a corrupt tenant setting can never block scheduling.
func (c *Calculator) location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		c.logger.Warn("unknown timezone, falling back to UTC",
			slog.String("timezone", name),
			slog.String("error", err.Error()))
		return time.UTC
	}
	return loc
}

// resolveLocal maps a civil wall-clock time in loc to an absolute instant.
// The day may be out of range for the month; it normalizes the same way
// time.Date does.
//
// DST handling: interpreting the wall clock against every UTC offset in
// effect around the target day yields each instant that could display this
// time. Two matches mean a fall-back overlap (pick the earlier), zero mean a
// spring-forward gap (pick the transition instant, the first valid time at
// or after the requested clock).
func resolveLocal(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	naive := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)

	var candidates []time.Time
	for _, off := range offsetsAround(naive, loc) {
		cand := naive.Add(-time.Duration(off) * time.Second)
		if sameWallClock(cand.In(loc), naive) {
			candidates = append(candidates, cand)
		}
	}

	if len(candidates) == 0 {
		return transitionNear(naive, loc)
	}

	slices.SortFunc(candidates, func(a, b time.Time) int { return a.Compare(b) })
	return candidates[0]
}

// offsetsAround returns the distinct UTC offsets (in seconds) observed in
// loc within a day on either side of the instant.
func offsetsAround(t time.Time, loc *time.Location) []int {
	offsets := make([]int, 0, 3)
	for _, probe := range []time.Time{t.Add(-24 * time.Hour), t, t.Add(24 * time.Hour)} {
		_, off := probe.In(loc).Zone()
		if !slices.Contains(offsets, off) {
			offsets = append(offsets, off)
		}
	}
	return offsets
}

func sameWallClock(t, want time.Time) bool {
	ty, tm, td := t.Date()
	wy, wm, wd := want.Date()
	return ty == wy && tm == wm && td == wd &&
		t.Hour() == want.Hour() && t.Minute() == want.Minute()
}

// transitionNear locates the instant the clock jumps over a skipped wall
// time. The jump lies between the instants implied by the offsets on either
// side of it, so a binary search on the zone offset finds it exactly.
func transitionNear(naive time.Time, loc *time.Location) time.Time {
	offsets := offsetsAround(naive, loc)

	minOff, maxOff := offsets[0], offsets[0]
	for _, off := range offsets[1:] {
		minOff = min(minOff, off)
		maxOff = max(maxOff, off)
	}
	if minOff == maxOff {
		// No transition nearby; the wall clock must exist after all.
		return naive.Add(-time.Duration(minOff) * time.Second)
	}

	// A forward jump raises the offset, so the post-transition side is the
	// larger one. lo precedes the transition, hi follows it.
	lo := naive.Add(-time.Duration(maxOff) * time.Second)
	hi := naive.Add(-time.Duration(minOff) * time.Second)
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2).Truncate(time.Second)
		if _, off := mid.In(loc).Zone(); off == maxOff {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}
