package engine

// FindArbitrage compares self against other and returns every transfer whose
// sell/buy ratio beats 1+anomalyFactor, in both directions.
//
// Direction 1 buys from self's sell orders and sells into other's buy orders:
// other.bid / self.ask - 1 >= anomalyFactor. Direction 2 is the mirror.
// Only items present in both stores are considered; a direction whose
// required price is missing or zero is skipped.
func FindArbitrage(self, other *PriceStore, anomalyFactor float64) []ArbitrageRecord {
	if self == nil || other == nil {
		return []ArbitrageRecord{}
	}

	records := []ArbitrageRecord{}
	for _, typeID := range self.TypeIDs() {
		a := self.items[typeID]
		b, ok := other.items[typeID]
		if !ok {
			continue
		}

		if rec, ok := transfer(typeID, self, a, other, b, anomalyFactor); ok {
			records = append(records, rec)
		}
		if rec, ok := transfer(typeID, other, b, self, a, anomalyFactor); ok {
			records = append(records, rec)
		}
	}
	return records
}

// transfer checks buying at src's best ask and selling at dst's best bid.
func transfer(typeID int32, src *PriceStore, srcSnap Snapshot, dst *PriceStore, dstSnap Snapshot, anomalyFactor float64) (ArbitrageRecord, bool) {
	ask := srcSnap.BestAsk()
	bid := dstSnap.BestBid()
	if ask <= 0 || bid <= 0 {
		return ArbitrageRecord{}, false
	}
	if bid/ask-1 < anomalyFactor {
		return ArbitrageRecord{}, false
	}
	return ArbitrageRecord{
		TypeID:           typeID,
		BuyLocation:      src.locationID,
		BuyLocationName:  src.locationName,
		BuyPrice:         ask,
		SellLocation:     dst.locationID,
		SellLocationName: dst.locationName,
		SellPrice:        bid,
	}, true
}
