package feed

// HeightRecord is one measured layout height, correlated to a feed row by its
// dom key. Index mirrors the ledger's own ordering; it is recomputed here
// rather than trusted from the caller because measurements arrive after paint,
// out of insertion order.
type HeightRecord struct {
	DomKey        DomKey
	Height        float64
	Index         int
	NewlyInserted bool
}

// heightLedger tracks per-row rendered heights for the virtualized list and
// maintains their running total. Updates are order-independent and idempotent:
// a repeated measurement with an unchanged height is a no-op, and a changed
// height triggers a full recompute of the total so small measurement deltas
// cannot compound into drift.
type heightLedger struct {
	records   []HeightRecord
	positions map[DomKey]int
	total     float64
}

func newHeightLedger() heightLedger {
	return heightLedger{positions: make(map[DomKey]int)}
}

func (ledger *heightLedger) record(domKey DomKey, height float64, newlyInserted bool) {
	position, seen := ledger.positions[domKey]
	if !seen {
		entry := HeightRecord{DomKey: domKey, Height: height, NewlyInserted: newlyInserted}
		if newlyInserted {
			ledger.records = append([]HeightRecord{entry}, ledger.records...)
		} else {
			ledger.records = append(ledger.records, entry)
		}
		ledger.total += height
		ledger.reindex()
		return
	}

	if ledger.records[position].Height == height {
		return
	}

	ledger.records[position].Height = height
	ledger.total = ledger.sum()
}

// drop removes the record for a departed feed row and decrements the total by
// its stored height.
func (ledger *heightLedger) drop(domKey DomKey) {
	position, seen := ledger.positions[domKey]
	if !seen {
		return
	}
	ledger.total -= ledger.records[position].Height
	ledger.records = append(ledger.records[:position], ledger.records[position+1:]...)
	ledger.reindex()
}

func (ledger *heightLedger) totalHeight() float64 {
	return ledger.total
}

func (ledger *heightLedger) sum() float64 {
	var total float64
	for _, record := range ledger.records {
		total += record.Height
	}
	return total
}

func (ledger *heightLedger) reindex() {
	if ledger.positions == nil {
		ledger.positions = make(map[DomKey]int, len(ledger.records))
	} else {
		clear(ledger.positions)
	}
	for position := range ledger.records {
		ledger.records[position].Index = position
		ledger.positions[ledger.records[position].DomKey] = position
	}
}

func (ledger *heightLedger) reset() {
	ledger.records = nil
	ledger.total = 0
	ledger.positions = make(map[DomKey]int)
}
