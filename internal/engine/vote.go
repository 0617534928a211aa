package engine

import "github.com/hailam/chessplay/internal/board"

// bestMoveByVote picks a final move across Lazy-SMP worker threads using a
// weighted majority vote instead of simply trusting whichever worker
// happened to report its deepest iteration last. A worker that searched a
// losing line unusually deep shouldn't out-shout several workers that
// independently converged on the same move: each worker's completed move
// casts a vote weighted by how far above the field's minimum score it
// finished and how deep it searched, and the move with the most combined
// votes wins. A reported mate score always overrides voting, since no
// amount of agreement beats a proven forced mate.
func bestMoveByVote(results map[int]WorkerResult) WorkerResult {
	var any WorkerResult
	minScore := 0
	haveAny := false
	for _, r := range results {
		if r.Move == board.NoMove {
			continue
		}
		if !haveAny || r.Score < minScore {
			minScore = r.Score
		}
		any = r
		haveAny = true
	}
	if !haveAny {
		return WorkerResult{}
	}

	votes := make(map[board.Move]int64, len(results))
	for _, r := range results {
		if r.Move == board.NoMove {
			continue
		}
		votes[r.Move] += int64(r.Score-minScore+14) * int64(r.Depth)
	}

	best := any
	for _, r := range results {
		if r.Move == board.NoMove {
			continue
		}
		switch {
		case isMateScore(best.Score) && isMateScore(r.Score):
			if r.Score > best.Score {
				best = r
			}
		case isMateScore(best.Score):
			// keep best: a proven mate beats any vote tally
		case isMateScore(r.Score):
			best = r
		case votes[r.Move] > votes[best.Move]:
			best = r
		case votes[r.Move] == votes[best.Move] && r.Depth > best.Depth:
			best = r
		}
	}
	return best
}

// isMateScore reports whether score represents a forced mate found within
// the search horizon, as opposed to an ordinary positional evaluation.
func isMateScore(score int) bool {
	return score >= MateScore-MaxPly || score <= -MateScore+MaxPly
}
