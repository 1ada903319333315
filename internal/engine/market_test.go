package engine

import "testing"

func TestLedgerPath(t *testing.T) {
	tests := []struct {
		base string
		id   int64
		want string
	}{
		{"saves/datapoints.save", 60003760, "saves/datapoints-60003760.save"},
		{"datapoints", 1, "datapoints-1"},
		{"a.b/points.json", 2, "a.b/points-2.json"},
		{"", 60003760, ""},
	}
	for _, tt := range tests {
		if got := LedgerPath(tt.base, tt.id); got != tt.want {
			t.Errorf("LedgerPath(%q, %d) = %q, want %q", tt.base, tt.id, got, tt.want)
		}
	}
}

func TestLocation_String(t *testing.T) {
	if got := (Location{ID: 60003760, Name: "Jita"}).String(); got != "Jita" {
		t.Errorf("String() = %q, want Jita", got)
	}
	if got := (Location{ID: 60003760}).String(); got != "60003760" {
		t.Errorf("String() = %q, want 60003760", got)
	}
}

func TestStationMarket_Lifecycle(t *testing.T) {
	m := NewStationMarket(Location{ID: 1, Name: "Jita"}, nil)
	if m.Ledger().Max() != DefaultDatapointMax {
		t.Fatalf("default ledger max = %d", m.Ledger().Max())
	}
	if m.Store().Len() != 0 {
		t.Fatal("new market should start with an empty store")
	}
	if m.LoadFromDatapoints() {
		t.Fatal("LoadFromDatapoints on empty ledger should report false")
	}

	n := m.SetItems(map[int32]Snapshot{
		34: liquidSnapshot(5, 6),
		35: {Buy: &Side{Max: 0, Volume: 1}, Sell: &Side{Min: 1, Volume: 1}},
	})
	if n != 1 {
		t.Fatalf("SetItems kept %d, want 1", n)
	}
	if m.Store().LocationName() != "Jita" {
		t.Fatalf("store name = %q", m.Store().LocationName())
	}
	if added := m.AddCurrentToDatapoints(); added != 1 {
		t.Fatalf("AddCurrentToDatapoints = %d, want 1", added)
	}

	m.SetItems(nil)
	if !m.LoadFromDatapoints() {
		t.Fatal("LoadFromDatapoints should succeed with history")
	}
	if _, ok := m.Store().Get(34); !ok {
		t.Fatal("store rebuilt from datapoints is missing item 34")
	}
}

func TestStationMarket_CompareAndRank(t *testing.T) {
	a := NewStationMarket(Location{ID: 1, Name: "A"}, nil)
	b := NewStationMarket(Location{ID: 2, Name: "B"}, nil)
	a.SetItems(map[int32]Snapshot{7: liquidSnapshot(90, 100)})
	b.SetItems(map[int32]Snapshot{7: liquidSnapshot(130, 140)})

	recs := a.CompareMarket(b, 0.2)
	if len(recs) != 1 || recs[0].SellLocationName != "B" {
		t.Fatalf("CompareMarket = %+v", recs)
	}
	ranked := b.Margins(Fees{})
	if len(ranked) != 1 || ranked[0].TypeID != 7 {
		t.Fatalf("Margins = %+v", ranked)
	}
}
