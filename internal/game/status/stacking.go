package status

import "math"

// Outcome of reconciling two applications of a non-stacking definition.
type Outcome int8

const (
	OutcomeMerge   Outcome = iota // keep the existing instance, update it in place
	OutcomeReplace                // cancel the existing instance, create the incoming one
	OutcomeReject                 // keep the existing instance unchanged, drop the incoming one
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMerge:
		return "merge"
	case OutcomeReplace:
		return "replace"
	case OutcomeReject:
		return "reject"
	}
	return "unknown"
}

// Candidate is the comparable view of one application. Remaining is +Inf for
// every timing but Duration.
type Candidate struct {
	Value     float64
	Timing    Timing
	Remaining float64
}

// Decision is the result of Reconcile. Value, Timing and Remaining are only
// meaningful for OutcomeMerge.
type Decision struct {
	Outcome   Outcome
	Value     float64
	Timing    Timing
	Remaining float64
}

// Reconcile decides what happens when incoming collides with existing.
func Reconcile(behavior NonStackingBehavior, existing, incoming Candidate) Decision {
	switch behavior {
	case TakeHighestValue:
		if math.Abs(incoming.Value) > math.Abs(existing.Value) {
			return Decision{Outcome: OutcomeReplace}
		}
		return Decision{Outcome: OutcomeReject}

	case TakeHighestDuration:
		if incoming.Remaining > existing.Remaining {
			return Decision{Outcome: OutcomeReplace}
		}
		return Decision{Outcome: OutcomeReject}

	case TakeNewest:
		return Decision{Outcome: OutcomeReplace}

	case TakeOldest:
		return Decision{Outcome: OutcomeReject}
	}

	return matchHighestValue(existing, incoming)
}

// matchHighestValue keeps the higher magnitude and converts the other
// application's value·time into time at that magnitude, so switching never
// loses or gains total effect.
func matchHighestValue(existing, incoming Candidate) Decision {
	winner, loser := existing, incoming
	if math.Abs(incoming.Value) > math.Abs(existing.Value) {
		winner, loser = incoming, existing
	}

	converted := convertSpan(loser, winner)
	remaining := math.Max(winner.Remaining, converted)

	timing := winner.Timing
	if math.IsInf(remaining, 1) && !math.IsInf(winner.Remaining, 1) {
		timing = loser.Timing
	}
	if timing.Mode == TimingDuration {
		timing.Duration = remaining
	}

	return Decision{
		Outcome:   OutcomeMerge,
		Value:     winner.Value,
		Timing:    timing,
		Remaining: remaining,
	}
}

// convertSpan returns how long `to` has to last to match the value·time of `from`.
func convertSpan(from, to Candidate) float64 {
	fv, tv := math.Abs(from.Value), math.Abs(to.Value)
	switch {
	case fv == 0:
		return 0
	case tv == 0:
		return from.Remaining
	}
	return from.Remaining * fv / tv
}
