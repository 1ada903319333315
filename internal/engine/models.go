package engine

// Source tells which endpoint shape a Snapshot was normalized from.
type Source uint8

const (
	// SourceAggregate snapshots carry full per-side statistics (max/min/median/volume/orders).
	SourceAggregate Source = iota
	// SourceQuote snapshots carry a single price per side and no depth figures.
	SourceQuote
)

// Side holds aggregate statistics for one side (buy or sell) of an item's order book.
type Side struct {
	Max        float64 `json:"max"`
	Min        float64 `json:"min"`
	Median     float64 `json:"median"`
	Volume     float64 `json:"volume"`
	OrderCount float64 `json:"orderCount"`
}

// Snapshot is one observation of an item's buy and sell market at a location.
// A nil side means the endpoint never reported it.
type Snapshot struct {
	Buy     *Side  `json:"buy,omitempty"`
	Sell    *Side  `json:"sell,omitempty"`
	Source  Source `json:"source,omitempty"`
	Updated string `json:"updated,omitempty"`
}

// BestBid returns the highest buy order price, or 0 when the buy side is absent.
func (s Snapshot) BestBid() float64 {
	if s.Buy == nil {
		return 0
	}
	return s.Buy.Max
}

// BestAsk returns the lowest sell order price, or 0 when the sell side is absent.
func (s Snapshot) BestAsk() float64 {
	if s.Sell == nil {
		return 0
	}
	return s.Sell.Min
}

// Clone returns a deep copy so stored snapshots never alias caller memory.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Buy != nil {
		b := *s.Buy
		out.Buy = &b
	}
	if s.Sell != nil {
		sl := *s.Sell
		out.Sell = &sl
	}
	return out
}

// ArbitrageRecord is a cross-location transfer: buy at BuyLocation, sell at SellLocation.
type ArbitrageRecord struct {
	TypeID           int32   `json:"type_id"`
	BuyLocation      int64   `json:"buy_location"`
	BuyLocationName  string  `json:"buy_location_name"`
	BuyPrice         float64 `json:"buy_price"`
	SellLocation     int64   `json:"sell_location"`
	SellLocationName string  `json:"sell_location_name"`
	SellPrice        float64 `json:"sell_price"`
}

// MarginPercent is the gross spread of the record relative to its buy price.
func (r ArbitrageRecord) MarginPercent() float64 {
	if r.BuyPrice <= 0 {
		return 0
	}
	return sanitizeFloat((r.SellPrice/r.BuyPrice - 1) * 100)
}

// MarginCandidate is a same-station trade scored for ranking.
type MarginCandidate struct {
	TypeID   int32    `json:"type_id"`
	Snapshot Snapshot `json:"snapshot"`

	// Weighting is the best-case fee-adjusted sell/buy ratio; 0 for illiquid items.
	Weighting float64 `json:"weighting"`
	// MedianRatio is the same ratio on median prices. Informational only.
	MedianRatio float64 `json:"median_ratio"`
	// Share of volume and orders sitting on the sell side. Informational only.
	SellVolumeSaturation float64 `json:"sell_volume_saturation"`
	SellOrderSaturation  float64 `json:"sell_order_saturation"`
}
