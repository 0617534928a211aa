package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses a FEN string and returns a Position.
func ParseFEN(fen string) (*Position, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return nil, fmt.Errorf("invalid FEN: need at least 4 fields, got %d", len(parts))
	}

	pos := &Position{
		EnPassant:      NoSquare,
		FullMoveNumber: 1,
	}
	pos.KingSquare[White] = NoSquare
	pos.KingSquare[Black] = NoSquare

	// Parse piece placement (field 0)
	if err := parsePiecePlacement(pos, parts[0]); err != nil {
		return nil, err
	}

	// Parse side to move (field 1)
	switch parts[1] {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return nil, fmt.Errorf("invalid side to move: %s", parts[1])
	}

	// Parse castling rights (field 2)
	if err := parseCastlingRights(pos, parts[2]); err != nil {
		return nil, err
	}

	// Parse en passant square (field 3)
	if parts[3] != "-" {
		sq, err := ParseSquare(parts[3])
		if err != nil {
			return nil, fmt.Errorf("invalid en passant square: %s", parts[3])
		}
		pos.EnPassant = sq
	}

	// Parse half-move clock (field 4, optional)
	if len(parts) > 4 {
		hmc, err := strconv.Atoi(parts[4])
		if err != nil {
			return nil, fmt.Errorf("invalid half-move clock: %s", parts[4])
		}
		pos.HalfMoveClock = hmc
	}

	// Parse full-move number (field 5, optional)
	if len(parts) > 5 {
		fmn, err := strconv.Atoi(parts[5])
		if err != nil {
			return nil, fmt.Errorf("invalid full-move number: %s", parts[5])
		}
		pos.FullMoveNumber = fmn
	}

	// Update derived state
	pos.updateOccupied()
	pos.findKings()
	pos.Hash = pos.ComputeHash()
	pos.PawnKey = pos.ComputePawnKey()
	pos.NonPawnKey = pos.ComputeNonPawnKey()
	pos.UpdateCheckers()

	return pos, nil
}

// parsePiecePlacement parses the piece placement section of a FEN string.
func parsePiecePlacement(pos *Position, placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("invalid piece placement: need 8 ranks, got %d", len(ranks))
	}

	for i, rankStr := range ranks {
		rank := 7 - i // FEN starts from rank 8
		file := 0

		for _, c := range rankStr {
			if file > 7 {
				return fmt.Errorf("too many squares in rank %d", rank+1)
			}

			if c >= '1' && c <= '8' {
				// Skip empty squares
				file += int(c - '0')
			} else {
				// Place a piece
				piece := PieceFromChar(byte(c))
				if piece == NoPiece {
					return fmt.Errorf("invalid piece character: %c", c)
				}
				sq := NewSquare(file, rank)
				pos.setPiece(piece, sq)
				file++
			}
		}

		if file != 8 {
			return fmt.Errorf("invalid number of squares in rank %d: got %d", rank+1, file)
		}
	}

	return nil
}

// parseCastlingRights parses the castling rights section of a FEN string.
// Accepts both standard KQkq notation (rook assumed on its home corner) and
// Shredder-FEN file-letter notation (A-H/a-h naming the rook's actual file),
// so Chess960 starting positions round-trip correctly. Requires piece
// placement to already be parsed, since file-letter notation is resolved
// against the king's actual square.
func parseCastlingRights(pos *Position, castling string) error {
	pos.Castling = CastlingMask{RookFrom: [4]Square{H1, A1, H8, A8}}

	if castling == "-" {
		pos.CastlingRights = NoCastling
		return nil
	}

	wk := pos.Pieces[White][King].LSB()
	bk := pos.Pieces[Black][King].LSB()

	for _, c := range castling {
		switch {
		case c == 'K':
			pos.CastlingRights |= WhiteKingSideCastle
			pos.Castling.RookFrom[0] = H1
		case c == 'Q':
			pos.CastlingRights |= WhiteQueenSideCastle
			pos.Castling.RookFrom[1] = A1
		case c == 'k':
			pos.CastlingRights |= BlackKingSideCastle
			pos.Castling.RookFrom[2] = H8
		case c == 'q':
			pos.CastlingRights |= BlackQueenSideCastle
			pos.Castling.RookFrom[3] = A8
		case c >= 'A' && c <= 'H':
			sq := NewSquare(int(c-'A'), 0)
			if sq.File() > wk.File() {
				pos.CastlingRights |= WhiteKingSideCastle
				pos.Castling.RookFrom[0] = sq
			} else {
				pos.CastlingRights |= WhiteQueenSideCastle
				pos.Castling.RookFrom[1] = sq
			}
		case c >= 'a' && c <= 'h':
			sq := NewSquare(int(c-'a'), 7)
			if sq.File() > bk.File() {
				pos.CastlingRights |= BlackKingSideCastle
				pos.Castling.RookFrom[2] = sq
			} else {
				pos.CastlingRights |= BlackQueenSideCastle
				pos.Castling.RookFrom[3] = sq
			}
		default:
			return fmt.Errorf("invalid castling character: %c", c)
		}
	}

	return nil
}

// ToFEN returns the FEN representation of the position.
func (p *Position) ToFEN() string {
	var sb strings.Builder

	// Piece placement
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			piece := p.PieceAt(sq)
			if piece == NoPiece {
				empty++
			} else {
				if empty > 0 {
					sb.WriteString(strconv.Itoa(empty))
					empty = 0
				}
				sb.WriteString(piece.String())
			}
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	// Side to move
	sb.WriteByte(' ')
	if p.SideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	// Castling rights
	sb.WriteByte(' ')
	sb.WriteString(p.castlingFEN())

	// En passant
	sb.WriteByte(' ')
	sb.WriteString(p.EnPassant.String())

	// Half-move clock and full-move number
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.HalfMoveClock))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.FullMoveNumber))

	return sb.String()
}

// castlingFEN renders castling rights as standard KQkq letters when every
// available right's rook still sits on its home corner, or as Shredder-FEN
// file letters otherwise (Chess960 starts).
func (p *Position) castlingFEN() string {
	if p.CastlingRights == NoCastling {
		return "-"
	}

	standard := [4]Square{H1, A1, H8, A8}
	isStandard := true
	for i, right := range [4]CastlingRights{WhiteKingSideCastle, WhiteQueenSideCastle, BlackKingSideCastle, BlackQueenSideCastle} {
		if p.CastlingRights&right != 0 && p.Castling.RookFrom[i] != standard[i] {
			isStandard = false
			break
		}
	}
	if isStandard {
		return p.CastlingRights.String()
	}

	var sb strings.Builder
	if p.CastlingRights&WhiteKingSideCastle != 0 {
		sb.WriteByte("ABCDEFGH"[p.Castling.RookFrom[0].File()])
	}
	if p.CastlingRights&WhiteQueenSideCastle != 0 {
		sb.WriteByte("ABCDEFGH"[p.Castling.RookFrom[1].File()])
	}
	if p.CastlingRights&BlackKingSideCastle != 0 {
		sb.WriteByte("abcdefgh"[p.Castling.RookFrom[2].File()])
	}
	if p.CastlingRights&BlackQueenSideCastle != 0 {
		sb.WriteByte("abcdefgh"[p.Castling.RookFrom[3].File()])
	}
	return sb.String()
}

// ComputeHash computes the Zobrist hash for the position from scratch.
func (p *Position) ComputeHash() uint64 {
	var hash uint64

	// Hash pieces
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			bb := p.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				hash ^= zobristPiece[c][pt][sq]
			}
		}
	}

	// Hash side to move
	if p.SideToMove == Black {
		hash ^= zobristSideToMove
	}

	// Hash castling rights
	hash ^= zobristCastling[p.CastlingRights]

	// Hash en passant
	if p.EnPassant != NoSquare {
		hash ^= zobristEnPassant[p.EnPassant.File()]
	}

	return hash
}

// ComputePawnKey computes the pawn hash key from scratch.
// Only includes pawn positions for pawn structure caching.
func (p *Position) ComputePawnKey() uint64 {
	var key uint64

	for c := White; c <= Black; c++ {
		bb := p.Pieces[c][Pawn]
		for bb != 0 {
			sq := bb.PopLSB()
			key ^= zobristPiece[c][Pawn][sq]
		}
	}

	return key
}

// ComputeNonPawnKey computes the per-color non-pawn hash key from scratch.
// Used to seed NNUE accumulator refresh / finny-cache bucket lookups.
func (p *Position) ComputeNonPawnKey() [2]uint64 {
	var keys [2]uint64

	for c := White; c <= Black; c++ {
		for pt := Knight; pt <= King; pt++ {
			bb := p.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				keys[c] ^= zobristPiece[c][pt][sq]
			}
		}
	}

	return keys
}
