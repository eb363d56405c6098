// Package schedule computes the next delivery instant for a recurring brief
// from a tenant's timezone, cadence, and preferred local time of day.
//
// The calculator is a pure function over the IANA timezone database: it takes
// a Spec and a reference instant and returns the next occurrence as an
// absolute UTC instant, strictly in the future. Daylight-saving transitions
// are resolved explicitly rather than left to time.Date normalization:
//
//   - An ambiguous local time (fall-back overlap, the wall clock occurs
//     twice) resolves to the earlier of the two instants.
//   - A non-existent local time (spring-forward gap) resolves to the first
//     valid instant at or after the requested wall clock.
//
// Unknown zone identifiers degrade to UTC with a warning instead of failing:
// a tenant with a corrupt timezone setting still receives briefs, just on
// UTC wall time.
//
// # Usage
//
//	calc := schedule.NewCalculator()
//	next := calc.Next(schedule.Spec{
//	    Timezone: "America/New_York",
//	    Cadence:  schedule.CadenceDaily,
//	    Hour:     7,
//	    Minute:   30,
//	}, time.Now())
package schedule
