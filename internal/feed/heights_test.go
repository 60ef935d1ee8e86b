package feed

import "testing"

func TestRecordHeightMaintainsRunningTotal(t *testing.T) {
	engine := mustEngine(t, EngineConfig{Fetcher: &stubFetcher{}, Actions: &stubActions{}})

	engine.RecordHeight(mustDomKey(t, "dom-1"), 100, 0, false)
	engine.RecordHeight(mustDomKey(t, "dom-2"), 250.5, 1, false)
	engine.RecordHeight(mustDomKey(t, "dom-3"), 60, 2, false)

	if total := engine.TotalHeight(); total != 410.5 {
		t.Fatalf("expected total 410.5, got %v", total)
	}
}

func TestRecordHeightIdempotentForUnchangedValue(t *testing.T) {
	engine := mustEngine(t, EngineConfig{Fetcher: &stubFetcher{}, Actions: &stubActions{}})

	key := mustDomKey(t, "dom-1")
	engine.RecordHeight(key, 120, 0, false)
	before := engine.TotalHeight()

	engine.RecordHeight(key, 120, 0, false)
	engine.RecordHeight(key, 120, 3, false)

	if after := engine.TotalHeight(); after != before {
		t.Fatalf("repeated unchanged measurement moved total from %v to %v", before, after)
	}
}

func TestRecordHeightRecomputesTotalOnChange(t *testing.T) {
	engine := mustEngine(t, EngineConfig{Fetcher: &stubFetcher{}, Actions: &stubActions{}})

	key := mustDomKey(t, "dom-1")
	engine.RecordHeight(key, 120, 0, false)
	engine.RecordHeight(mustDomKey(t, "dom-2"), 80, 1, false)

	// An image finishing layout re-measures the same row.
	engine.RecordHeight(key, 150, 0, false)

	if total := engine.TotalHeight(); total != 230 {
		t.Fatalf("expected recomputed total 230, got %v", total)
	}
}

func TestRecordHeightOrderIndependent(t *testing.T) {
	tests := []struct {
		name  string
		order []string
	}{
		{name: "insertion-order", order: []string{"dom-1", "dom-2", "dom-3"}},
		{name: "reversed", order: []string{"dom-3", "dom-2", "dom-1"}},
		{name: "interleaved", order: []string{"dom-2", "dom-1", "dom-3"}},
	}

	heights := map[string]float64{"dom-1": 100, "dom-2": 40, "dom-3": 260}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := mustEngine(t, EngineConfig{Fetcher: &stubFetcher{}, Actions: &stubActions{}})
			for position, key := range tt.order {
				engine.RecordHeight(mustDomKey(t, key), heights[key], position, false)
			}
			if total := engine.TotalHeight(); total != 400 {
				t.Fatalf("expected total 400 regardless of arrival order, got %v", total)
			}
		})
	}
}

func TestNewlyInsertedRecordsLeadTheLedger(t *testing.T) {
	ledger := newHeightLedger()

	ledger.record("dom-1", 100, false)
	ledger.record("dom-2", 80, false)
	ledger.record("dom-new", 50, true)

	if ledger.records[0].DomKey != "dom-new" {
		t.Fatalf("expected newly inserted record at front, got %s", ledger.records[0].DomKey)
	}
	for position, record := range ledger.records {
		if record.Index != position {
			t.Fatalf("expected reindexed position %d, got %d", position, record.Index)
		}
	}
	if ledger.totalHeight() != 230 {
		t.Fatalf("expected total 230, got %v", ledger.totalHeight())
	}
}

func TestDropUnknownKeyIsNoOp(t *testing.T) {
	ledger := newHeightLedger()
	ledger.record("dom-1", 100, false)

	ledger.drop("dom-unknown")

	if ledger.totalHeight() != 100 {
		t.Fatalf("expected total unchanged at 100, got %v", ledger.totalHeight())
	}
}
