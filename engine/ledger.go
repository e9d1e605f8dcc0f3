package engine

/*
The trim ledger tracks sealed blocks, in log order, from archival until
their objects commit. The log may only be trimmed through offsets whose
blocks have all committed, so the ledger's trim floor is the end of the
contiguous committed prefix: a block whose migration failed pins the floor,
and everything behind it stays in the log until the block migrates.

The ledger is owned by the migration loop and does no locking.
*/

////////////////////////////////////////////////////////////////////////////////

type ledgerEntry struct {
	blockID   uint64
	maxOffset uint64
	committed bool
}

type ledger struct {
	entries []ledgerEntry
}

// add records a sealed block and the highest log offset it contains. Blocks
// must be added in log order.
func (l *ledger) add(blockID uint64, maxOffset uint64) {
	l.entries = append(l.entries, ledgerEntry{blockID: blockID, maxOffset: maxOffset})
}

// commit marks a block's object committed and returns the new trim floor.
// Zero means the floor did not move.
func (l *ledger) commit(blockID uint64) uint64 {
	for i := range l.entries {
		if l.entries[i].blockID == blockID {
			l.entries[i].committed = true
			break
		}
	}
	var floor uint64
	i := 0
	for i < len(l.entries) && l.entries[i].committed {
		floor = l.entries[i].maxOffset
		i++
	}
	l.entries = l.entries[i:]
	return floor
}
