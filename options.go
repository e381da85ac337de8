package ups

import (
	"math/bits"

	"github.com/cruppstahl/ups/internal/engine"
)

// MoveFlag selects the direction and duplicate handling of a cursor move.
// The zero value re-reads the current item.
type MoveFlag uint32

const (
	MoveFirst    MoveFlag = MoveFlag(engine.CursorFirst)
	MoveLast     MoveFlag = MoveFlag(engine.CursorLast)
	MoveNext     MoveFlag = MoveFlag(engine.CursorNext)
	MovePrevious MoveFlag = MoveFlag(engine.CursorPrevious)

	// SkipDuplicates steps over the remaining duplicates of the current key
	SkipDuplicates MoveFlag = MoveFlag(engine.SkipDuplicates)

	// OnlyDuplicates stays within the duplicates of the current key
	OnlyDuplicates MoveFlag = MoveFlag(engine.OnlyDuplicates)

	moveDirections = MoveFirst | MoveLast | MoveNext | MovePrevious
)

// Validate rejects unknown bits, several directions at once and
// SkipDuplicates combined with OnlyDuplicates.
func (f MoveFlag) Validate() error {
	if f&^(moveDirections|SkipDuplicates|OnlyDuplicates) != 0 {
		return invalid("unknown move flags 0x%x", uint32(f))
	}
	if bits.OnesCount32(uint32(f&moveDirections)) > 1 {
		return invalid("move flags name more than one direction")
	}
	if f&SkipDuplicates != 0 && f&OnlyDuplicates != 0 {
		return invalid("SkipDuplicates and OnlyDuplicates are exclusive")
	}
	return nil
}

// FindFlag selects exact or approximate matching. The zero value is an
// exact match.
type FindFlag uint32

const (
	FindEQ   FindFlag = FindFlag(engine.FindEQ)
	FindLT   FindFlag = FindFlag(engine.FindLT)
	FindGT   FindFlag = FindFlag(engine.FindGT)
	FindLEQ           = FindLT | FindEQ
	FindGEQ           = FindGT | FindEQ
	FindNear          = FindLT | FindGT | FindEQ
)

func (f FindFlag) Validate() error {
	if f&^FindNear != 0 {
		return invalid("unknown find flags 0x%x", uint32(f))
	}
	return nil
}

// approximate reports whether a match may land on a different key.
func (f FindFlag) approximate() bool {
	return f&(FindLT|FindGT) != 0
}

// InsertFlag controls overwrite and duplicate placement.
type InsertFlag uint32

const (
	Overwrite InsertFlag = InsertFlag(engine.Overwrite)
	Duplicate InsertFlag = InsertFlag(engine.Duplicate)

	// Duplicate placement relative to the cursor's current duplicate. Each
	// implies Duplicate and is only valid for cursor inserts.
	DuplicateInsertBefore InsertFlag = InsertFlag(engine.DuplicateInsertBefore)
	DuplicateInsertAfter  InsertFlag = InsertFlag(engine.DuplicateInsertAfter)
	DuplicateInsertFirst  InsertFlag = InsertFlag(engine.DuplicateInsertFirst)
	DuplicateInsertLast   InsertFlag = InsertFlag(engine.DuplicateInsertLast)

	HintAppend  InsertFlag = InsertFlag(engine.HintAppend)
	HintPrepend InsertFlag = InsertFlag(engine.HintPrepend)

	duplicatePositions = DuplicateInsertBefore | DuplicateInsertAfter |
		DuplicateInsertFirst | DuplicateInsertLast
	insertMask = Overwrite | Duplicate | duplicatePositions | HintAppend | HintPrepend
)

func (f InsertFlag) Validate() error {
	if f&^insertMask != 0 {
		return invalid("unknown insert flags 0x%x", uint32(f))
	}
	if f&Overwrite != 0 && f&(Duplicate|duplicatePositions) != 0 {
		return invalid("Overwrite and Duplicate are exclusive")
	}
	if bits.OnesCount32(uint32(f&duplicatePositions)) > 1 {
		return invalid("insert flags name more than one duplicate position")
	}
	return nil
}

// validateDatabaseInsert additionally rejects positions, which need a
// cursor to be relative to.
func (f InsertFlag) validateDatabaseInsert() error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f&duplicatePositions != 0 {
		return invalid("duplicate position flags need a cursor")
	}
	return nil
}
