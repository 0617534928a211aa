package board

import "sync"

var initOnce sync.Once

// Init prepares every package-level lookup table: leaping piece attacks,
// between/line bitboards, PEXT-indexed sliding attack tables, Zobrist keys,
// and the cuckoo upcoming-repetition table. It must be called before any
// other board function; it is safe to call more than once or from more than
// one goroutine; the tables are built exactly once.
func Init() {
	initOnce.Do(func() {
		initKnightAttacks()
		initKingAttacks()
		initPawnAttacks()
		initBetweenBB()
		initLineBB()
		initSlidingAttacks()
		initZobristTables()
		initCuckoo()
	})
}
