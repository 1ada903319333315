package engine

import "sort"

// Liquidity floor below which a margin candidate is scored 0.
const (
	MinSellVolume     = 50
	MinSideOrderCount = 5
)

// Fees are the trading costs applied to same-station flips, as fractions.
type Fees struct {
	BrokersFee float64 // paid on both placing the buy order and the sell order
	SalesTax   float64 // paid on the sale
}

// effectivePrices returns the fee-adjusted cost of buying at bid and revenue
// of selling at ask.
func (f Fees) effectivePrices(bid, ask float64) (buy, sell float64) {
	buy = bid * (1 + f.BrokersFee)
	sell = ask * (1 - f.BrokersFee) * (1 - f.SalesTax)
	return buy, sell
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return sanitizeFloat(num / den)
}

// ScoreMargin scores one item for same-station margin trading.
func ScoreMargin(typeID int32, s Snapshot, fees Fees) MarginCandidate {
	c := MarginCandidate{TypeID: typeID, Snapshot: s.Clone()}
	if s.Buy == nil || s.Sell == nil {
		return c
	}

	buy, sell := fees.effectivePrices(s.Buy.Max, s.Sell.Min)
	medBuy, medSell := fees.effectivePrices(s.Buy.Median, s.Sell.Median)
	c.MedianRatio = ratio(medSell, medBuy)
	c.SellVolumeSaturation = ratio(s.Sell.Volume, s.Buy.Volume+s.Sell.Volume)
	c.SellOrderSaturation = ratio(s.Sell.OrderCount, s.Buy.OrderCount+s.Sell.OrderCount)

	if s.Sell.Volume < MinSellVolume || s.Buy.OrderCount < MinSideOrderCount || s.Sell.OrderCount < MinSideOrderCount {
		return c
	}
	c.Weighting = ratio(sell, buy)
	return c
}

// CalcWeighting returns the ranking weight of a snapshot.
func CalcWeighting(s Snapshot, fees Fees) float64 {
	return ScoreMargin(0, s, fees).Weighting
}

// RankMargins scores every item in store and returns them best weighting
// first; equal weightings are ordered by type ID.
func RankMargins(store *PriceStore, fees Fees) []MarginCandidate {
	if store == nil {
		return []MarginCandidate{}
	}
	out := make([]MarginCandidate, 0, store.Len())
	for typeID, snap := range store.items {
		out = append(out, ScoreMargin(typeID, snap, fees))
	}
	SortCandidates(out)
	return out
}

// SortCandidates orders candidates by weighting descending, then type ID.
func SortCandidates(c []MarginCandidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Weighting != c[j].Weighting {
			return c[i].Weighting > c[j].Weighting
		}
		return c[i].TypeID < c[j].TypeID
	})
}
