package board

import "fmt"

// MoveFlag classifies a Move. The bit layout is deliberate: bit 2 (0b100)
// marks a capture, bit 3 (0b1000) marks a promotion, and the low two bits
// of a promotion flag select the promoted piece (Knight=0 .. Queen=3).
// This lets IsCapture/IsPromotion/IsQuiet/IsUnderPromotion be bit tests
// with no position lookup required.
type MoveFlag uint16

const (
	FlagNormal     MoveFlag = 0b0000
	FlagDoublePush MoveFlag = 0b0001
	FlagCastling   MoveFlag = 0b0010

	FlagCapture   MoveFlag = 0b0100
	FlagEnPassant MoveFlag = 0b0101

	FlagPromoN MoveFlag = 0b1000
	FlagPromoB MoveFlag = 0b1001
	FlagPromoR MoveFlag = 0b1010
	FlagPromoQ MoveFlag = 0b1011

	FlagCPromoN MoveFlag = 0b1100
	FlagCPromoB MoveFlag = 0b1101
	FlagCPromoR MoveFlag = 0b1110
	FlagCPromoQ MoveFlag = 0b1111
)

// IsCapture reports whether moves carrying this flag remove an enemy piece.
func (f MoveFlag) IsCapture() bool { return f&0b0100 != 0 }

// IsPromotion reports whether moves carrying this flag place a promoted piece.
func (f MoveFlag) IsPromotion() bool { return f&0b1000 != 0 }

// IsQuiet reports whether the move is neither a capture nor a promotion.
func (f MoveFlag) IsQuiet() bool { return f&0b1100 == 0 }

// IsUnderPromotion reports a non-queen promotion.
func (f MoveFlag) IsUnderPromotion() bool { return f.IsPromotion() && f&0b0011 != 0b0011 }

// PromotionPiece returns the piece type promoted to; only valid if IsPromotion.
func (f MoveFlag) PromotionPiece() PieceType { return PieceType(f&0b0011) + Knight }

// promoFlag returns the promotion flag (capturing or not) for a promoted piece type.
func promoFlag(promo PieceType, capture bool) MoveFlag {
	f := MoveFlag(promo-Knight) | 0b1000
	if capture {
		f |= 0b0100
	}
	return f
}

// Move encodes a chess move in 16 bits: 6 bits source, 6 bits destination,
// 4-bit flag. NoMove (the zero value) is a reserved sentinel meaning "no move":
// it decodes to from=a1, to=a1, flag=Normal, which is never a legal move.
type Move uint16

// NoMove is the reserved null-move encoding.
const NoMove Move = 0

// NewMove builds a move from its parts.
func NewMove(from, to Square, flag MoveFlag) Move {
	return Move(from)<<6 | Move(to) | Move(flag)<<12
}

// NewNormal creates a plain, non-capturing, non-special move.
func NewNormal(from, to Square) Move {
	return NewMove(from, to, FlagNormal)
}

// NewCapture creates a plain capture (not en passant, not a promotion).
func NewCapture(from, to Square) Move {
	return NewMove(from, to, FlagCapture)
}

// NewDoublePush creates a two-square pawn push, recording the ep square implicitly.
func NewDoublePush(from, to Square) Move {
	return NewMove(from, to, FlagDoublePush)
}

// NewPromotion creates a (possibly capturing) promotion move.
func NewPromotion(from, to Square, promo PieceType, capture bool) Move {
	return NewMove(from, to, promoFlag(promo, capture))
}

// NewEnPassant creates an en passant capture move.
func NewEnPassant(from, to Square) Move {
	return NewMove(from, to, FlagEnPassant)
}

// NewCastling creates a castling move (encoded as the king's own source/destination square).
func NewCastling(from, to Square) Move {
	return NewMove(from, to, FlagCastling)
}

// From returns the origin square.
func (m Move) From() Square {
	return Square((m >> 6) & 0x3F)
}

// To returns the destination square.
func (m Move) To() Square {
	return Square(m & 0x3F)
}

// Flag returns the move's flag nibble.
func (m Move) Flag() MoveFlag {
	return MoveFlag((m >> 12) & 0xF)
}

// Promotion returns the promotion piece type; NoPieceType if not a promotion.
func (m Move) Promotion() PieceType {
	if !m.IsPromotion() {
		return NoPieceType
	}
	return m.Flag().PromotionPiece()
}

// IsPromotion returns true if this move places a promoted piece.
func (m Move) IsPromotion() bool { return m.Flag().IsPromotion() }

// IsCastling returns true if this is a castling move.
func (m Move) IsCastling() bool { return m.Flag() == FlagCastling }

// IsEnPassant returns true if this is an en passant capture.
func (m Move) IsEnPassant() bool { return m.Flag() == FlagEnPassant }

// IsDoublePush returns true if this is a two-square pawn push.
func (m Move) IsDoublePush() bool { return m.Flag() == FlagDoublePush }

// IsCapture returns true if this move removes an enemy piece. Unlike the
// reference implementation this needs no Position: captures are self-describing.
func (m Move) IsCapture() bool { return m.Flag().IsCapture() }

// IsQuiet returns true if this is neither a capture nor a promotion.
func (m Move) IsQuiet() bool { return m.Flag().IsQuiet() }

// IsUnderPromotion returns true for a non-queen promotion.
func (m Move) IsUnderPromotion() bool { return m.Flag().IsUnderPromotion() }

// String returns the UCI format of the move (e.g., "e2e4", "e7e8q").
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}

	s := m.From().String() + m.To().String()

	if m.IsPromotion() {
		promoChars := []byte{'n', 'b', 'r', 'q'}
		s += string(promoChars[m.Promotion()-Knight])
	}

	return s
}

// ParseMove parses a UCI format move string against the current position,
// inferring flags (capture, en passant, double push, castling) from context.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}

	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}
	pt := piece.Type()
	capture := !pos.IsEmpty(to)

	if len(s) == 5 {
		var promo PieceType
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		return NewPromotion(from, to, promo, capture), nil
	}

	if pt == King && pos.isCastlingMove(from, to) {
		return NewCastling(from, to), nil
	}

	if pt == Pawn && to == pos.EnPassant && pos.EnPassant != NoSquare {
		return NewEnPassant(from, to), nil
	}

	if pt == Pawn && abs(int(to)-int(from)) == 16 {
		return NewDoublePush(from, to), nil
	}

	if capture {
		return NewCapture(from, to), nil
	}
	return NewNormal(from, to), nil
}

// MoveList is a fixed-size list of moves to avoid allocations.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add adds a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Set sets the move at index i.
func (ml *MoveList) Set(i int, m Move) {
	ml.moves[i] = m
}

// Swap swaps two moves in the list.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear clears the list.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains returns true if the list contains the move.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the moves as a slice.
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}

// UndoInfo stores information needed to undo a move, plus the derived masks
// that were in effect before the move (restored verbatim rather than recomputed).
type UndoInfo struct {
	CapturedPiece  Piece
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	Hash           uint64
	PawnKey        uint64
	NonPawnKey     [2]uint64
	Checkers       Bitboard
	Attacked       Bitboard
	Checkmask      Bitboard
	PinDiag        Bitboard
	PinOrth        Bitboard
	KingSquare     [2]Square
	Pieces         [2][6]Bitboard
	Occupied       [2]Bitboard
	AllOccupied    Bitboard
	Valid          bool
}
