package board

// Move generation produces only legal moves directly, rather than generating
// pseudo-legal moves and re-validating each with make/undo. Checkmask and pin
// data are computed once per node (computeCheckData) and then every piece
// loop below intersects its destination bitboard against that data, so an
// illegal destination is never added to the list in the first place.

// GenerateLegalMoves generates all legal moves for the position.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	p.computeCheckData()
	p.generateAllMoves(ml, false)
	return ml
}

// GeneratePseudoLegalMoves generates all pseudo-legal moves (may leave king in check).
// Kept for callers that only need move shape, not legality (e.g. SAN disambiguation
// before a legality filter runs elsewhere); search and UI code use GenerateLegalMoves.
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	p.Checkmask = Universe
	p.PinDiag, p.PinOrth = Empty, Empty
	p.generateAllMoves(ml, false)
	return ml
}

// GenerateCaptures generates all legal capture moves (including promotions).
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	p.computeCheckData()
	p.generateAllMoves(ml, true)
	return ml
}

// attackedBy returns every square attacked by color c given occupied, used
// to validate king steps (occupied has the moving king already removed by
// the caller so sliding attacks see through the vacated square).
func (p *Position) attackedBy(c Color, occupied Bitboard) Bitboard {
	var att Bitboard

	pawns := p.Pieces[c][Pawn]
	if c == White {
		att |= pawns.NorthEast() | pawns.NorthWest()
	} else {
		att |= pawns.SouthEast() | pawns.SouthWest()
	}

	knights := p.Pieces[c][Knight]
	for knights != 0 {
		att |= KnightAttacks(knights.PopLSB())
	}

	diagSliders := p.Pieces[c][Bishop] | p.Pieces[c][Queen]
	for diagSliders != 0 {
		att |= BishopAttacks(diagSliders.PopLSB(), occupied)
	}

	orthSliders := p.Pieces[c][Rook] | p.Pieces[c][Queen]
	for orthSliders != 0 {
		att |= RookAttacks(orthSliders.PopLSB(), occupied)
	}

	att |= KingAttacks(p.KingSquare[c])

	return att
}

// computeCheckData refreshes Checkmask, PinDiag, PinOrth, and Attacked for
// the side to move. Must run before generateAllMoves.
func (p *Position) computeCheckData() {
	us := p.SideToMove
	them := us.Other()
	ksq := p.KingSquare[us]
	occ := p.AllOccupied

	p.Attacked = p.attackedBy(them, occ&^SquareBB(ksq))

	switch p.Checkers.PopCount() {
	case 0:
		p.Checkmask = Universe
	case 1:
		checkerSq := p.Checkers.LSB()
		p.Checkmask = SquareBB(checkerSq)
		if pt := p.PieceAt(checkerSq).Type(); pt == Bishop || pt == Rook || pt == Queen {
			p.Checkmask |= Between(ksq, checkerSq)
		}
	default:
		p.Checkmask = Empty
	}

	p.PinOrth, p.PinDiag = Empty, Empty

	orthSnipers := RookAttacks(ksq, Empty) & (p.Pieces[them][Rook] | p.Pieces[them][Queen])
	for orthSnipers != 0 {
		sq := orthSnipers.PopLSB()
		blockers := Between(sq, ksq) & occ
		if blockers.PopCount() == 1 && blockers&p.Occupied[us] != 0 {
			p.PinOrth |= blockers
		}
	}

	diagSnipers := BishopAttacks(ksq, Empty) & (p.Pieces[them][Bishop] | p.Pieces[them][Queen])
	for diagSnipers != 0 {
		sq := diagSnipers.PopLSB()
		blockers := Between(sq, ksq) & occ
		if blockers.PopCount() == 1 && blockers&p.Occupied[us] != 0 {
			p.PinDiag |= blockers
		}
	}
}

// destinationMask returns the legal destination mask for a piece on sq,
// folding in the checkmask (must capture/block the sole checker, or be the
// king) and, if the piece is pinned, the ray it is confined to.
func (p *Position) destinationMask(sq Square) Bitboard {
	mask := p.Checkmask
	if p.PinOrth.IsSet(sq) {
		mask &= Line(p.KingSquare[p.SideToMove], sq)
	} else if p.PinDiag.IsSet(sq) {
		mask &= Line(p.KingSquare[p.SideToMove], sq)
	}
	return mask
}

// generateAllMoves generates legal moves; capturesOnly restricts pawn/piece
// destinations to enemy-occupied squares (queen/under promotions still all
// generated, since quiescence search wants to see them).
func (p *Position) generateAllMoves(ml *MoveList, capturesOnly bool) {
	us := p.SideToMove
	them := us.Other()
	occupied := p.AllOccupied
	enemies := p.Occupied[them]

	doubleCheck := p.Checkers.PopCount() >= 2

	if !doubleCheck {
		p.generatePawnMoves(ml, us, enemies, occupied, capturesOnly)

		knights := p.Pieces[us][Knight] &^ (p.PinDiag | p.PinOrth)
		for knights != 0 {
			from := knights.PopLSB()
			attacks := KnightAttacks(from) & ^p.Occupied[us] & p.destinationMask(from)
			if capturesOnly {
				attacks &= enemies
			}
			for attacks != 0 {
				to := attacks.PopLSB()
				ml.Add(addSimple(from, to, enemies))
			}
		}

		bishops := p.Pieces[us][Bishop] &^ p.PinOrth
		for bishops != 0 {
			from := bishops.PopLSB()
			attacks := BishopAttacks(from, occupied) & ^p.Occupied[us] & p.destinationMask(from)
			if capturesOnly {
				attacks &= enemies
			}
			for attacks != 0 {
				to := attacks.PopLSB()
				ml.Add(addSimple(from, to, enemies))
			}
		}

		rooks := p.Pieces[us][Rook] &^ p.PinDiag
		for rooks != 0 {
			from := rooks.PopLSB()
			attacks := RookAttacks(from, occupied) & ^p.Occupied[us] & p.destinationMask(from)
			if capturesOnly {
				attacks &= enemies
			}
			for attacks != 0 {
				to := attacks.PopLSB()
				ml.Add(addSimple(from, to, enemies))
			}
		}

		queens := p.Pieces[us][Queen]
		for queens != 0 {
			from := queens.PopLSB()
			attacks := QueenAttacks(from, occupied) & ^p.Occupied[us] & p.destinationMask(from)
			if capturesOnly {
				attacks &= enemies
			}
			for attacks != 0 {
				to := attacks.PopLSB()
				ml.Add(addSimple(from, to, enemies))
			}
		}

		if !capturesOnly {
			p.generateCastlingMoves(ml, us)
		}
	}

	// King moves are always generated, check or not.
	p.generateKingMoves(ml, us, capturesOnly)
}

// addSimple builds a quiet or plain-capture move depending on whether the
// destination holds an enemy piece.
func addSimple(from, to Square, enemies Bitboard) Move {
	if enemies.IsSet(to) {
		return NewCapture(from, to)
	}
	return NewNormal(from, to)
}

// generatePawnMoves generates legal pawn moves, including en passant.
// Pinned-pawn captures/pushes are restricted via destinationMask like any
// other piece; the one case that mask can't express is an en passant
// capture that exposes the king along the fifth/fourth rank once both the
// capturing pawn and the captured pawn leave the rank simultaneously, which
// is validated directly against the resulting occupancy below.
func (p *Position) generatePawnMoves(ml *MoveList, us Color, enemies, occupied Bitboard, capturesOnly bool) {
	pawns := p.Pieces[us][Pawn]
	empty := ^occupied

	var push1, push2, attackL, attackR Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promotionRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promotionRank = Rank1
		pushDir = -8
	}

	maskFor := func(from Square) Bitboard { return p.destinationMask(from) }

	if !capturesOnly {
		nonPromo := push1 & ^promotionRank
		for nonPromo != 0 {
			to := nonPromo.PopLSB()
			from := Square(int(to) - pushDir)
			if maskFor(from).IsSet(to) {
				ml.Add(NewNormal(from, to))
			}
		}

		for push2 != 0 {
			to := push2.PopLSB()
			from := Square(int(to) - 2*pushDir)
			if maskFor(from).IsSet(to) {
				ml.Add(NewDoublePush(from, to))
			}
		}

		promoPush := push1 & promotionRank
		for promoPush != 0 {
			to := promoPush.PopLSB()
			from := Square(int(to) - pushDir)
			if maskFor(from).IsSet(to) {
				addPromotions(ml, from, to, false)
			}
		}
	} else {
		// Quiescence still wants push promotions, even though they're quiet.
		promoPush := push1 & promotionRank
		for promoPush != 0 {
			to := promoPush.PopLSB()
			from := Square(int(to) - pushDir)
			if maskFor(from).IsSet(to) {
				addPromotions(ml, from, to, false)
			}
		}
	}

	nonPromoL := attackL & ^promotionRank
	for nonPromoL != 0 {
		to := nonPromoL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		if maskFor(from).IsSet(to) {
			ml.Add(NewCapture(from, to))
		}
	}

	nonPromoR := attackR & ^promotionRank
	for nonPromoR != 0 {
		to := nonPromoR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		if maskFor(from).IsSet(to) {
			ml.Add(NewCapture(from, to))
		}
	}

	promoL := attackL & promotionRank
	for promoL != 0 {
		to := promoL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		if maskFor(from).IsSet(to) {
			addPromotions(ml, from, to, true)
		}
	}

	promoR := attackR & promotionRank
	for promoR != 0 {
		to := promoR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		if maskFor(from).IsSet(to) {
			addPromotions(ml, from, to, true)
		}
	}

	// En passant: a capture resolves check either by landing on a blocking
	// square (target in Checkmask) or by removing the checking pawn itself
	// (captured square in Checkmask, since the checker's own square is
	// always part of Checkmask when it is the sole checker). The rare
	// horizontal-pin discovered check, where capturing vacates both the
	// capturing and captured pawn's squares on the king's rank at once, is
	// checked directly against the post-capture occupancy in isEnPassantLegal.
	if p.EnPassant != NoSquare {
		epBB := SquareBB(p.EnPassant)
		var epAttackers Bitboard
		var capturedSq Square
		if us == White {
			epAttackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
			capturedSq = p.EnPassant - 8
		} else {
			epAttackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
			capturedSq = p.EnPassant + 8
		}
		resolvesCheck := p.Checkmask.IsSet(p.EnPassant) || p.Checkmask.IsSet(capturedSq)
		for epAttackers != 0 {
			from := epAttackers.PopLSB()
			if !resolvesCheck {
				continue
			}
			if p.PinOrth.IsSet(from) || p.PinDiag.IsSet(from) {
				if !Line(p.KingSquare[us], from).IsSet(p.EnPassant) {
					continue
				}
			}
			if p.isEnPassantLegal(from, us) {
				ml.Add(NewEnPassant(from, p.EnPassant))
			}
		}
	}
}

// isEnPassantLegal handles the classic horizontal-pin edge case: capturing
// en passant removes both the moving pawn and the captured pawn from the
// fourth/fifth rank in one step, which can expose the king to a rook or
// queen that neither pawn was blocking alone. Checked directly against the
// resulting occupancy since no pin mask captures a two-piece removal.
func (p *Position) isEnPassantLegal(from Square, us Color) bool {
	them := us.Other()
	ksq := p.KingSquare[us]
	if ksq.Rank() != from.Rank() {
		return true
	}

	var capturedSq Square
	if us == White {
		capturedSq = p.EnPassant - 8
	} else {
		capturedSq = p.EnPassant + 8
	}

	occ := p.AllOccupied &^ SquareBB(from) &^ SquareBB(capturedSq) | SquareBB(p.EnPassant)
	attackers := RookAttacks(ksq, occ) & (p.Pieces[them][Rook] | p.Pieces[them][Queen])
	return attackers == 0
}

// addPromotions adds all four promotion moves (capturing or not).
func addPromotions(ml *MoveList, from, to Square, capture bool) {
	ml.Add(NewPromotion(from, to, Queen, capture))
	ml.Add(NewPromotion(from, to, Rook, capture))
	ml.Add(NewPromotion(from, to, Bishop, capture))
	ml.Add(NewPromotion(from, to, Knight, capture))
}

// generateKingMoves generates legal (non-castling) king moves: any step onto
// a square not held by a friendly piece and not attacked once the king has
// left its own square.
func (p *Position) generateKingMoves(ml *MoveList, us Color, capturesOnly bool) {
	them := us.Other()
	from := p.KingSquare[us]
	attacks := KingAttacks(from) & ^p.Occupied[us] & ^p.Attacked
	if capturesOnly {
		attacks &= p.Occupied[them]
	}

	for attacks != 0 {
		to := attacks.PopLSB()
		ml.Add(addSimple(from, to, p.Occupied[them]))
	}
}

// generateCastlingMoves generates castling moves, validated against the
// actual rook squares recorded in Castling (so Shredder-FEN/Chess960 starts
// work the same as standard ones).
func (p *Position) generateCastlingMoves(ml *MoveList, us Color) {
	them := us.Other()
	ksq := p.KingSquare[us]

	try := func(right CastlingRights, rookIdx int, kingTo, rookTo Square) {
		if p.CastlingRights&right == 0 {
			return
		}
		rookFrom := p.Castling.RookFrom[rookIdx]

		occWithoutCastlers := p.AllOccupied &^ SquareBB(ksq) &^ SquareBB(rookFrom)
		path := (Between(ksq, kingTo) | SquareBB(kingTo) | Between(rookFrom, rookTo) | SquareBB(rookTo)) &^ SquareBB(ksq) &^ SquareBB(rookFrom)
		if path&occWithoutCastlers != 0 {
			return
		}

		kingPath := Between(ksq, kingTo) | SquareBB(ksq) | SquareBB(kingTo)
		for s := kingPath; s != 0; {
			sq := s.PopLSB()
			if p.IsSquareAttacked(sq, them) {
				return
			}
		}

		ml.Add(NewCastling(ksq, kingTo))
	}

	if us == White {
		try(WhiteKingSideCastle, 0, G1, F1)
		try(WhiteQueenSideCastle, 1, C1, D1)
	} else {
		try(BlackKingSideCastle, 2, G8, F8)
		try(BlackQueenSideCastle, 3, C8, D8)
	}
}

// MakeMove applies a move to the position and returns undo information.
func (p *Position) MakeMove(m Move) UndoInfo {
	undo := UndoInfo{
		CapturedPiece:  NoPiece,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		HalfMoveClock:  p.HalfMoveClock,
		Hash:           p.Hash,
		PawnKey:        p.PawnKey,
		NonPawnKey:     p.NonPawnKey,
		Checkers:       p.Checkers,
		Attacked:       p.Attacked,
		Checkmask:      p.Checkmask,
		PinDiag:        p.PinDiag,
		PinOrth:        p.PinOrth,
		Valid:          false,
	}

	us := p.SideToMove
	them := us.Other()
	from := m.From()
	to := m.To()
	piece := p.PieceAt(from)

	if piece == NoPiece {
		return undo
	}

	undo.Valid = true
	pt := piece.Type()

	p.Hash ^= zobristSideToMove
	p.Hash ^= zobristCastling[p.CastlingRights]

	if p.EnPassant != NoSquare {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}

	p.EnPassant = NoSquare

	if m.IsEnPassant() {
		var capturedSq Square
		if us == White {
			capturedSq = to - 8
		} else {
			capturedSq = to + 8
		}
		undo.CapturedPiece = p.removePiece(capturedSq)
		p.togglePieceHash(them, Pawn, capturedSq)
	} else if captured := p.PieceAt(to); captured != NoPiece {
		undo.CapturedPiece = captured
		p.removePiece(to)
		p.togglePieceHash(them, captured.Type(), to)
	}

	p.movePiece(from, to)
	p.togglePieceHash(us, pt, from)
	p.togglePieceHash(us, pt, to)

	if m.IsPromotion() {
		promoPt := m.Promotion()
		p.Pieces[us][Pawn] &^= SquareBB(to)
		p.Pieces[us][promoPt] |= SquareBB(to)
		p.togglePieceHash(us, Pawn, to)
		p.togglePieceHash(us, promoPt, to)
	}

	if m.IsCastling() {
		var rookFrom, rookTo Square
		kingSide := to > from
		var ridx int
		switch {
		case us == White && kingSide:
			ridx, rookTo = 0, F1
		case us == White && !kingSide:
			ridx, rookTo = 1, D1
		case us == Black && kingSide:
			ridx, rookTo = 2, F8
		default:
			ridx, rookTo = 3, D8
		}
		rookFrom = p.Castling.RookFrom[ridx]
		p.movePiece(rookFrom, rookTo)
		p.togglePieceHash(us, Rook, rookFrom)
		p.togglePieceHash(us, Rook, rookTo)
	}

	if pt == King {
		if us == White {
			p.CastlingRights &^= WhiteKingSideCastle | WhiteQueenSideCastle
		} else {
			p.CastlingRights &^= BlackKingSideCastle | BlackQueenSideCastle
		}
	}

	for i, right := range [4]CastlingRights{WhiteKingSideCastle, WhiteQueenSideCastle, BlackKingSideCastle, BlackQueenSideCastle} {
		if p.CastlingRights&right != 0 {
			rsq := p.Castling.RookFrom[i]
			if from == rsq || to == rsq {
				p.CastlingRights &^= right
			}
		}
	}

	p.Hash ^= zobristCastling[p.CastlingRights]

	if pt == Pawn && abs(int(to)-int(from)) == 16 {
		epSquare := Square((int(from) + int(to)) / 2)
		p.EnPassant = epSquare
		p.Hash ^= zobristEnPassant[epSquare.File()]
	}

	if pt == Pawn || undo.CapturedPiece != NoPiece {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}

	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them

	p.UpdateCheckers()

	return undo
}

// UnmakeMove undoes a move using the stored undo information.
func (p *Position) UnmakeMove(m Move, undo UndoInfo) {
	them := p.SideToMove
	us := them.Other()
	from := m.From()
	to := m.To()

	p.CastlingRights = undo.CastlingRights
	p.EnPassant = undo.EnPassant
	p.HalfMoveClock = undo.HalfMoveClock
	p.Hash = undo.Hash
	p.PawnKey = undo.PawnKey
	p.NonPawnKey = undo.NonPawnKey
	p.Checkers = undo.Checkers
	p.Attacked = undo.Attacked
	p.Checkmask = undo.Checkmask
	p.PinDiag = undo.PinDiag
	p.PinOrth = undo.PinOrth
	p.SideToMove = us

	if us == Black {
		p.FullMoveNumber--
	}

	if m.IsPromotion() {
		promoPt := m.Promotion()
		p.Pieces[us][promoPt] &^= SquareBB(to)
		p.Pieces[us][Pawn] |= SquareBB(to)
	}

	p.movePiece(to, from)

	if m.IsCastling() {
		var rookFrom, rookTo Square
		kingSide := to > from
		var ridx int
		switch {
		case us == White && kingSide:
			ridx, rookTo = 0, F1
		case us == White && !kingSide:
			ridx, rookTo = 1, D1
		case us == Black && kingSide:
			ridx, rookTo = 2, F8
		default:
			ridx, rookTo = 3, D8
		}
		rookFrom = p.Castling.RookFrom[ridx]
		p.movePiece(rookTo, rookFrom)
	}

	if undo.CapturedPiece != NoPiece {
		if m.IsEnPassant() {
			var capturedSq Square
			if us == White {
				capturedSq = to - 8
			} else {
				capturedSq = to + 8
			}
			p.setPiece(undo.CapturedPiece, capturedSq)
		} else {
			p.setPiece(undo.CapturedPiece, to)
		}
	}
}

// HasLegalMoves returns true if the side to move has any legal moves.
func (p *Position) HasLegalMoves() bool {
	return p.GenerateLegalMoves().Len() > 0
}

// IsCheckmate returns true if the position is checkmate.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate returns true if the position is stalemate.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

// IsDraw returns true if the position is a draw (stalemate, 50-move, insufficient material).
func (p *Position) IsDraw() bool {
	if p.IsStalemate() {
		return true
	}
	if p.HalfMoveClock >= 100 {
		return true
	}
	return p.IsInsufficientMaterial()
}

// IsInsufficientMaterial returns true if neither side can checkmate.
func (p *Position) IsInsufficientMaterial() bool {
	// If there are any pawns, rooks, or queens, sufficient material
	if p.Pieces[White][Pawn]|p.Pieces[Black][Pawn] != 0 ||
		p.Pieces[White][Rook]|p.Pieces[Black][Rook] != 0 ||
		p.Pieces[White][Queen]|p.Pieces[Black][Queen] != 0 {
		return false
	}

	// Count minor pieces
	wKnights := p.Pieces[White][Knight].PopCount()
	wBishops := p.Pieces[White][Bishop].PopCount()
	bKnights := p.Pieces[Black][Knight].PopCount()
	bBishops := p.Pieces[Black][Bishop].PopCount()

	// K vs K
	if wKnights+wBishops+bKnights+bBishops == 0 {
		return true
	}

	// K+minor vs K
	if wKnights+wBishops <= 1 && bKnights+bBishops == 0 {
		return true
	}
	if bKnights+bBishops <= 1 && wKnights+wBishops == 0 {
		return true
	}

	return false
}
