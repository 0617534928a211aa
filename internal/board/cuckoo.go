package board

// Upcoming-repetition detection via a cuckoo hash table over reversible
// piece jumps. For every non-pawn piece and every pair of squares it can
// reach in one hop, the table records the Zobrist delta that moving between
// those squares produces. During search, XORing the current hash with a
// hash from earlier in the game and probing this table answers "could a
// single reversible move connect these two positions" without re-deriving
// moves from the board.

const cuckooSize = 8192

var (
	cuckooKeys  [cuckooSize]uint64
	cuckooMoves [cuckooSize]Move
)

func cuckooH1(key uint64) int { return int(key & (cuckooSize - 1)) }
func cuckooH2(key uint64) int { return int((key >> 16) & (cuckooSize - 1)) }

// initCuckoo builds the cuckoo table once at startup.
func initCuckoo() {
	cuckooKeys = [cuckooSize]uint64{}
	cuckooMoves = [cuckooSize]Move{}

	for c := White; c <= Black; c++ {
		for pt := Knight; pt <= King; pt++ {
			for x := A1; x <= H8; x++ {
				for y := x + 1; y <= H8; y++ {
					if jumpAttacks(pt, x)&SquareBB(y) == 0 {
						continue
					}
					key := zobristPiece[c][pt][x] ^ zobristPiece[c][pt][y] ^ zobristSideToMove
					mv := NewNormal(x, y)
					cuckooInsert(key, mv)
				}
			}
		}
	}
}

// cuckooInsert places (key, move) into the table, displacing whatever
// occupies the slot until an empty one is found (standard cuckoo insertion).
func cuckooInsert(key uint64, mv Move) {
	slot := cuckooH1(key)
	for {
		cuckooKeys[slot], key = key, cuckooKeys[slot]
		cuckooMoves[slot], mv = mv, cuckooMoves[slot]
		if key == 0 {
			return
		}
		if slot == cuckooH1(key) {
			slot = cuckooH2(key)
		} else {
			slot = cuckooH1(key)
		}
	}
}

// jumpAttacks returns where a piece on an empty board can reach in one
// move. Used only to enumerate cuckoo table entries; bishops/rooks/queens
// are evaluated against an empty board since the table records geometric
// reachability, not legality on any particular occupancy.
func jumpAttacks(pt PieceType, sq Square) Bitboard {
	switch pt {
	case Knight:
		return KnightAttacks(sq)
	case Bishop:
		return BishopAttacks(sq, 0)
	case Rook:
		return RookAttacks(sq, 0)
	case Queen:
		return QueenAttacks(sq, 0)
	case King:
		return KingAttacks(sq)
	}
	return 0
}

// UpcomingRepetition reports whether a reversible move sequence from this
// position could repeat a position seen earlier in the game, letting search
// treat a near-certain repetition as a draw one ply early. history holds
// the hash of every position visited since the last irreversible move
// (pawn move, capture, castling-rights change), oldest first; rule50 is the
// current half-move clock (the reversible-move count).
func (p *Position) UpcomingRepetition(history []uint64, rule50 int) bool {
	end := rule50
	if len(history) < end {
		end = len(history)
	}
	if end < 3 {
		return false
	}

	last := len(history) - 1
	us := p.SideToMove

	for d := 3; d <= end; d += 2 {
		idx := last - d
		if idx < 0 {
			break
		}

		moveKey := p.Hash ^ history[idx]

		slot := cuckooH1(moveKey)
		if cuckooKeys[slot] != moveKey {
			slot = cuckooH2(moveKey)
			if cuckooKeys[slot] != moveKey {
				continue
			}
		}

		mv := cuckooMoves[slot]
		if Between(mv.From(), mv.To())&p.AllOccupied != 0 {
			continue
		}

		if !p.Occupied[us].IsSet(mv.From()) && !p.Occupied[us].IsSet(mv.To()) {
			continue
		}

		if d < rule50 {
			return true
		}

		// Look for a second occurrence further back to confirm an actual
		// upcoming threefold rather than a single reversible detour.
		for j := idx - 2; j >= last-end; j -= 2 {
			if j < 0 {
				break
			}
			if history[j] == history[idx] {
				return true
			}
		}
	}

	return false
}
