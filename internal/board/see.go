package board

// Static exchange evaluation. Separate from the general material table used
// by evaluation: SEE only needs to rank pieces for swap-off comparisons, so
// minors are spread further apart and the queen is worth slightly more
// relative to a rook than it is in the positional evaluation.
var seeValue = [7]int{200, 780, 820, 1300, 2500, 20000, 0}

// SEEValue returns the static-exchange value of a piece type.
func SEEValue(pt PieceType) int { return seeValue[pt] }

// SEE estimates the material result of playing out every recapture on m's
// destination square, from the mover's perspective.
func (p *Position) SEE(m Move) int {
	from := m.From()
	to := m.To()

	attacker := p.PieceAt(from)
	if attacker == NoPiece {
		return 0
	}

	var gain0 int
	if m.IsEnPassant() {
		gain0 = seeValue[Pawn]
	} else if victim := p.PieceAt(to); victim != NoPiece {
		gain0 = seeValue[victim.Type()]
	}
	if m.IsPromotion() {
		gain0 += seeValue[m.Promotion()] - seeValue[Pawn]
	}

	var gain [32]int
	gain[0] = gain0

	occupied := p.AllOccupied &^ SquareBB(from)
	if m.IsEnPassant() {
		var capSq Square
		if p.SideToMove == White {
			capSq = to - 8
		} else {
			capSq = to + 8
		}
		occupied &^= SquareBB(capSq)
	}

	attackerValue := seeValue[attacker.Type()]
	side := attacker.Color().Other()
	d := 0

	for {
		d++
		gain[d] = attackerValue - gain[d-1]
		if maxInt(-gain[d-1], gain[d]) < 0 {
			break
		}

		sq, pt := leastValuableAttacker(p, to, side, occupied)
		if sq == NoSquare {
			break
		}
		occupied &^= SquareBB(sq)
		attackerValue = seeValue[pt]
		side = side.Other()
	}

	for d--; d > 0; d-- {
		gain[d-1] = -maxInt(-gain[d-1], gain[d])
	}

	return gain[0]
}

// SEEGe reports whether the exchange initiated by m nets at least threshold
// centipawns for the moving side, letting search prune losing captures
// before spending a node on them.
func (p *Position) SEEGe(m Move, threshold int) bool {
	return p.SEE(m) >= threshold
}

// leastValuableAttacker finds the cheapest piece of side attacking target
// given the (already-reduced) occupied bitboard, checked in ascending value
// order so sliders recomputed each step correctly see freshly uncovered
// x-ray attackers.
func leastValuableAttacker(p *Position, target Square, side Color, occupied Bitboard) (Square, PieceType) {
	if bb := p.Pieces[side][Pawn] & PawnAttacks(target, side.Other()) & occupied; bb != 0 {
		return bb.LSB(), Pawn
	}
	if bb := p.Pieces[side][Knight] & KnightAttacks(target) & occupied; bb != 0 {
		return bb.LSB(), Knight
	}
	if bb := p.Pieces[side][Bishop] & BishopAttacks(target, occupied) & occupied; bb != 0 {
		return bb.LSB(), Bishop
	}
	if bb := p.Pieces[side][Rook] & RookAttacks(target, occupied) & occupied; bb != 0 {
		return bb.LSB(), Rook
	}
	if bb := p.Pieces[side][Queen] & QueenAttacks(target, occupied) & occupied; bb != 0 {
		return bb.LSB(), Queen
	}
	if bb := p.Pieces[side][King] & KingAttacks(target) & occupied; bb != 0 {
		return bb.LSB(), King
	}
	return NoSquare, NoPieceType
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
