package marketapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cast"

	"eve-marketscan/internal/engine"
)

// aggregateSide is one side of an aggregates entry. Fuzzwork encodes every
// number as a string, so leaves are decoded loosely and coerced afterwards.
type aggregateSide map[string]interface{}

// FetchAggregates requests order book aggregates for ids at locationID.
// A payload that does not decode, or carries a non-numeric leaf, is an error.
func (c *Client) FetchAggregates(ctx context.Context, locationID int64, ids []int32) (map[int32]engine.Snapshot, error) {
	body, err := c.get(ctx, c.opts.AggregatesURL, map[string]string{
		"region": strconv.FormatInt(locationID, 10),
		"types":  joinIDs(ids),
	}, "application/json")
	if err != nil {
		return nil, err
	}
	return ParseAggregates(body)
}

// ParseAggregates decodes an aggregates payload:
// {"<id>": {"buy": {"max": "1.5", ...}, "sell": {...}}}.
func ParseAggregates(body []byte) (map[int32]engine.Snapshot, error) {
	var raw map[string]map[string]aggregateSide
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode aggregates: %w", err)
	}

	out := make(map[int32]engine.Snapshot, len(raw))
	for key, entry := range raw {
		id, err := strconv.ParseInt(key, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("aggregates: bad type id %q", key)
		}
		var snap engine.Snapshot
		if b, ok := entry["buy"]; ok {
			side, err := b.toSide()
			if err != nil {
				return nil, fmt.Errorf("aggregates %d buy: %w", id, err)
			}
			snap.Buy = side
		}
		if s, ok := entry["sell"]; ok {
			side, err := s.toSide()
			if err != nil {
				return nil, fmt.Errorf("aggregates %d sell: %w", id, err)
			}
			snap.Sell = side
		}
		out[int32(id)] = snap
	}
	return out, nil
}

func (a aggregateSide) toSide() (*engine.Side, error) {
	if a == nil {
		return nil, nil
	}
	var side engine.Side
	fields := []struct {
		key string
		dst *float64
	}{
		{"max", &side.Max},
		{"min", &side.Min},
		{"median", &side.Median},
		{"volume", &side.Volume},
		{"orderCount", &side.OrderCount},
	}
	for _, f := range fields {
		v, ok := a[f.key]
		if !ok || v == nil {
			continue
		}
		n, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.key, err)
		}
		*f.dst = n
	}
	return &side, nil
}

// Aggregates adapts FetchAggregates to engine.PriceSource.
type Aggregates struct{ Client *Client }

func (a Aggregates) FetchPrices(ctx context.Context, locationID int64, ids []int32) (map[int32]engine.Snapshot, error) {
	return a.Client.FetchAggregates(ctx, locationID, ids)
}
