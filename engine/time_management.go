package engine

import "time"

// TimeHandler tracks the clock of one search. A zero limit means no time bound.
type TimeHandler struct {
	start    time.Time
	limit    time.Duration
	deadline time.Time
	soft     time.Time
}

// softFraction of the budget after which no new iteration is started.
const softFraction = 0.6

func (th *TimeHandler) Start(limit time.Duration) {
	th.start = time.Now()
	th.limit = limit
	if limit > 0 {
		th.deadline = th.start.Add(limit)
		th.soft = th.start.Add(time.Duration(float64(limit) * softFraction))
	}
}

func (th *TimeHandler) Elapsed() time.Duration { return time.Since(th.start) }

// TimeStatus is true once the hard deadline has passed.
func (th *TimeHandler) TimeStatus() bool {
	return th.limit > 0 && time.Now().After(th.deadline)
}

// SoftTimeExceeded is true when another full iteration is unlikely to finish.
func (th *TimeHandler) SoftTimeExceeded() bool {
	return th.limit > 0 && time.Now().After(th.soft)
}

// AllocateMoveTime turns a game clock into a per-move budget. phase runs from 0
// (bare kings) to TotalPhase (all pieces on).
func AllocateMoveTime(remaining, increment time.Duration, phase int) time.Duration {
	const (
		overhead   = 30 * time.Millisecond
		minMove    = 5 * time.Millisecond
		maxFrac    = 0.7
		panicBelow = time.Second
		panicFrac  = 0.9
	)
	movesLeft := estimateMovesRemaining(phase)

	var moveTime time.Duration
	switch {
	case increment > 0 && remaining < panicBelow:
		moveTime = time.Duration(float64(increment) * panicFrac)
	case increment > 0:
		moveTime = remaining/time.Duration(movesLeft) + increment
	default:
		moveTime = remaining / 40
	}
	if ceiling := time.Duration(float64(remaining) * maxFrac); moveTime > ceiling {
		moveTime = ceiling
	}
	if moveTime > remaining-overhead {
		moveTime = remaining - overhead
	}
	if moveTime < minMove {
		moveTime = minMove
	}
	return moveTime
}

func estimateMovesRemaining(phase int) int {
	if phase < 0 {
		phase = 0
	}
	if phase > TotalPhase {
		phase = TotalPhase
	}
	return (phase*25)/TotalPhase + 20 // 20..45
}
