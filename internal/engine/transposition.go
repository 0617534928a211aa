package engine

import (
	"sync/atomic"

	"github.com/hailam/chessplay/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

// TTEntry is the decoded view of a transposition table slot, handed back by
// Probe. It never aliases the underlying slot, so callers can hold onto it
// across a Store from another goroutine without racing.
type TTEntry struct {
	BestMove board.Move // Best move found
	Score    int16      // Score (bounded by flag)
	Depth    int8       // Search depth
	Flag     TTFlag     // Type of bound
	Age      uint8      // Generation for replacement
	IsPV     bool       // Whether this entry was stored from a PV node
}

// ttSlot is one lockless bucket: two atomic words instead of a mutex. data
// packs the entry fields; keyXor stores hash^data at write time. A reader
// reloads both words (in either order, no ordering is enforced) and checks
// that keyXor^data reconstructs the probed hash. Any interleaving with a
// concurrent Store changes data without changing the already-loaded keyXor
// (or vice versa), so the reconstructed hash fails to match and the probe is
// treated as a miss rather than handing back a torn entry. This is the
// classic lockless hashing trick: two plain atomic stores replace a lock at
// the cost of occasional false-miss probes under contention, which is cheap
// compared to serializing every search thread on one mutex.
type ttSlot struct {
	keyXor atomic.Uint64
	data   atomic.Uint64
}

// Bit layout of the packed data word (LSB first):
//
//	bits 0-15  move       (board.Move, 16 bits)
//	bits 16-31 score      (int16 bit pattern)
//	bits 32-39 depth      (int8 bit pattern)
//	bits 40-41 flag       (2 bits)
//	bit  42    isPV
//	bits 43-50 age        (8 bits)
const (
	ttMoveShift  = 0
	ttScoreShift = 16
	ttDepthShift = 32
	ttFlagShift  = 40
	ttPVShift    = 42
	ttAgeShift   = 43

	ttMoveMask  = 0xFFFF
	ttScoreMask = 0xFFFF
	ttDepthMask = 0xFF
	ttFlagMask  = 0x3
	ttAgeMask   = 0xFF
)

func packTTData(bestMove board.Move, score int16, depth int8, flag TTFlag, age uint8, isPV bool) uint64 {
	var pv uint64
	if isPV {
		pv = 1
	}
	return uint64(uint16(bestMove))<<ttMoveShift |
		uint64(uint16(score))<<ttScoreShift |
		uint64(uint8(depth))<<ttDepthShift |
		uint64(flag)<<ttFlagShift |
		pv<<ttPVShift |
		uint64(age)<<ttAgeShift
}

func unpackTTData(data uint64) TTEntry {
	return TTEntry{
		BestMove: board.Move(uint16((data >> ttMoveShift) & ttMoveMask)),
		Score:    int16(uint16((data >> ttScoreShift) & ttScoreMask)),
		Depth:    int8(uint8((data >> ttDepthShift) & ttDepthMask)),
		Flag:     TTFlag((data >> ttFlagShift) & ttFlagMask),
		IsPV:     (data>>ttPVShift)&1 != 0,
		Age:      uint8((data >> ttAgeShift) & ttAgeMask),
	}
}

// TranspositionTable is a lockless hash table for storing search results,
// shared without synchronization by every Lazy-SMP worker goroutine.
type TranspositionTable struct {
	entries []ttSlot
	size    uint64
	mask    uint64
	age     uint8

	// Statistics (best-effort under concurrent access; used only for UCI info).
	hits   atomic.Uint64
	probes atomic.Uint64
}

// NewTranspositionTable creates a transposition table with the given size in MB.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	entrySize := uint64(16) // two uint64 words per slot
	numEntries := (uint64(sizeMB) * 1024 * 1024) / entrySize

	numEntries = roundDownToPowerOf2(numEntries)
	if numEntries == 0 {
		numEntries = 1
	}

	return &TranspositionTable{
		entries: make([]ttSlot, numEntries),
		size:    numEntries,
		mask:    numEntries - 1,
	}
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

// Probe looks up a position in the transposition table.
// Returns the entry and true if found, otherwise returns empty entry and false.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	tt.probes.Add(1)

	slot := &tt.entries[hash&tt.mask]
	data := slot.data.Load()
	keyXor := slot.keyXor.Load()

	if keyXor^data != hash || data == 0 {
		return TTEntry{}, false
	}

	tt.hits.Add(1)
	return unpackTTData(data), true
}

// Store saves a position in the transposition table.
//
// A slot holding a different key is always overwritten. For the same key,
// the incoming result replaces the stored one when the stored entry is from
// an older search generation, when the incoming bound is exact, or when the
// incoming depth is at least the stored depth minus 2.
func (tt *TranspositionTable) Store(hash uint64, depth int, score int, flag TTFlag, bestMove board.Move, isPV bool) {
	slot := &tt.entries[hash&tt.mask]

	oldData := slot.data.Load()
	oldKeyXor := slot.keyXor.Load()
	sameKey := oldKeyXor^oldData == hash && oldData != 0

	if sameKey {
		old := unpackTTData(oldData)
		if bestMove == board.NoMove {
			bestMove = old.BestMove
		}
		replace := old.Age != tt.age ||
			flag == TTExact ||
			depth+2 >= int(old.Depth)
		if !replace {
			return
		}
	}

	data := packTTData(bestMove, int16(score), int8(depth), flag, tt.age, isPV)
	// Data first, then the XOR word: a concurrent reader that interleaves
	// with this write sees a (data, keyXor) pair that reconstructs to
	// neither the old nor the new hash, so it safely reports a miss.
	slot.data.Store(data)
	slot.keyXor.Store(hash ^ data)
}

// NewSearch increments the age counter for a new search.
// This helps with replacement decisions.
func (tt *TranspositionTable) NewSearch() {
	tt.age++
}

// Clear clears the transposition table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.entries {
		tt.entries[i].data.Store(0)
		tt.entries[i].keyXor.Store(0)
	}
	tt.age = 0
	tt.hits.Store(0)
	tt.probes.Store(0)
}

// HashFull returns the permille (parts per thousand) of the table that is used.
func (tt *TranspositionTable) HashFull() int {
	// Sample first 1000 entries
	used := 0
	sampleSize := 1000
	if uint64(sampleSize) > tt.size {
		sampleSize = int(tt.size)
	}

	for i := 0; i < sampleSize; i++ {
		data := tt.entries[i].data.Load()
		if data == 0 {
			continue
		}
		entry := unpackTTData(data)
		if entry.Depth > 0 && entry.Age == tt.age {
			used++
		}
	}

	return (used * 1000) / sampleSize
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	probes := tt.probes.Load()
	if probes == 0 {
		return 0
	}
	return float64(tt.hits.Load()) / float64(probes) * 100
}

// Size returns the number of entries in the table.
func (tt *TranspositionTable) Size() uint64 {
	return tt.size
}

// AdjustScoreFromTT adjusts a score read from the transposition table.
// Mate scores need to be adjusted based on ply distance.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT adjusts a score for storage in the transposition table.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
