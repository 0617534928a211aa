package engine

import (
	"time"

	"github.com/hailam/chessplay/internal/board"
)

// UCILimits contains UCI time control parameters.
type UCILimits struct {
	Time      [2]time.Duration // wtime, btime (remaining time for each color)
	Inc       [2]time.Duration // winc, binc (increment per move)
	MovesToGo int              // moves until next time control (0 = sudden death)
	MoveTime  time.Duration    // fixed time per move (overrides other time controls)
	Depth     int              // maximum search depth
	Nodes     uint64           // maximum nodes to search
	Infinite  bool             // search until stopped
	Ponder    bool             // ponder mode
}

// MoveOverhead is subtracted from the allotted budget to cover engine/GUI
// communication latency, so a FixedTime search never returns after the
// deadline the GUI actually enforces.
const MoveOverhead = 50 * time.Millisecond

// TimeManager handles time allocation for searches.
type TimeManager struct {
	optimumTime time.Duration // opt budget: soft limit, checked at iteration boundaries
	maximumTime time.Duration // max budget: hard limit, checked every few thousand nodes
	startTime   time.Time     // When search started
}

// NewTimeManager creates a new time manager.
func NewTimeManager() *TimeManager {
	return &TimeManager{}
}

// Init computes the (opt, max) budgets for a new search from the UCI time
// control. ply is unused by the formulas below (moves-to-go already
// captures game phase) but kept so callers don't need to special-case it.
func (tm *TimeManager) Init(limits UCILimits, us board.Color, _ int) {
	tm.startTime = time.Now()

	switch {
	case limits.MoveTime > 0:
		budget := limits.MoveTime - MoveOverhead
		if budget < 10*time.Millisecond {
			budget = 10 * time.Millisecond
		}
		tm.optimumTime = budget
		tm.maximumTime = budget

	case limits.Infinite || limits.Depth > 0 || limits.Nodes > 0 || limits.Time[us] == 0:
		tm.optimumTime = time.Hour
		tm.maximumTime = time.Hour

	case limits.MovesToGo > 0:
		t := limits.Time[us]
		mtg := limits.MovesToGo
		if mtg > 50 {
			mtg = 50
		}
		scale := 0.7 / float64(mtg)
		opt := time.Duration(scale * float64(t))
		eightyPct := t * 8 / 10
		if opt > eightyPct {
			opt = eightyPct
		}
		max := opt * 5
		if max > eightyPct {
			max = eightyPct
		}
		tm.optimumTime = opt
		tm.maximumTime = max

	default:
		t := limits.Time[us]
		inc := limits.Inc[us]
		base := t/20 + inc*3/4
		opt := base * 6 / 10
		max := base * 2
		if max > t {
			max = t
		}
		tm.optimumTime = opt
		tm.maximumTime = max
	}

	if tm.optimumTime < 10*time.Millisecond {
		tm.optimumTime = 10 * time.Millisecond
	}
	if tm.maximumTime < 50*time.Millisecond {
		tm.maximumTime = 50 * time.Millisecond
	}
	if tm.maximumTime < tm.optimumTime {
		tm.maximumTime = tm.optimumTime
	}
}

// Elapsed returns the time elapsed since search started.
func (tm *TimeManager) Elapsed() time.Duration {
	return time.Since(tm.startTime)
}

// OptimumTime returns the target time for this move.
func (tm *TimeManager) OptimumTime() time.Duration {
	return tm.optimumTime
}

// MaximumTime returns the maximum time allowed.
func (tm *TimeManager) MaximumTime() time.Duration {
	return tm.maximumTime
}

// ShouldStop is the hard should_continue gate: true once elapsed time
// reaches the max budget, at which point every worker must exit regardless
// of where it is in its current iteration.
func (tm *TimeManager) ShouldStop() bool {
	return tm.Elapsed() >= tm.maximumTime
}

// ShouldStartIteration is the soft should_start_iter gate, checked at
// iteration boundaries: admits another depth iff elapsed is still under the
// opt budget scaled by how concentrated the search has been on its current
// best move. bestMoveNodeFraction is nodes spent on the best root move over
// total nodes searched so far (f in the formula below); a best move that
// has soaked up most of the search's effort is unlikely to change, so the
// scale shrinks toward 0.5 and the search can stop sooner. A best move that
// keeps losing ground to alternatives keeps f low, so scale grows (up to
// 2.4 at f = 0, with the budget still capped at the max budget) and the
// search is given more time.
func (tm *TimeManager) ShouldStartIteration(bestMoveNodeFraction float64) bool {
	scale := 0.4 + 2*(1-bestMoveNodeFraction)
	if scale < 0.5 {
		scale = 0.5
	}
	budget := time.Duration(float64(tm.optimumTime) * scale)
	if budget > tm.maximumTime {
		budget = tm.maximumTime
	}
	return tm.Elapsed() < budget
}
