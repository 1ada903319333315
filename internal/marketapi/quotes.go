package marketapi

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/spf13/cast"

	"eve-marketscan/internal/engine"
)

type quoteDoc struct {
	XMLName xml.Name   `xml:"emd"`
	Rows    []quoteRow `xml:"result>rowset>row"`
}

type quoteRow struct {
	TypeID  string `xml:"typeID,attr"`
	Price   string `xml:"price,attr"`
	Updated string `xml:"updated,attr"`
}

// Quote is one parsed price row.
type Quote struct {
	TypeID  int32
	Price   float64
	Updated string
}

// FetchQuotes requests buy and sell quotes for ids at locationID and merges
// them into quote snapshots. Rows with a zero price are ignored, so an item
// quoted on one side only gets a nil opposite side.
func (c *Client) FetchQuotes(ctx context.Context, locationID int64, ids []int32) (map[int32]engine.Snapshot, error) {
	wanted := make(map[int32]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	out := make(map[int32]engine.Snapshot)
	for _, buysell := range []string{"b", "s"} {
		body, err := c.get(ctx, c.opts.QuotesURL, map[string]string{
			"char_name":       c.opts.CharName,
			"solarsystem_ids": strconv.FormatInt(locationID, 10),
			"type_ids":        joinIDs(ids),
			"buysell":         buysell,
		}, "application/xml;q=0.9, */*;q=0.8")
		if err != nil {
			return nil, err
		}
		quotes, err := ParseQuotes(body)
		if err != nil {
			return nil, err
		}
		for _, q := range quotes {
			if q.Price == 0 || !wanted[q.TypeID] {
				continue
			}
			snap := out[q.TypeID]
			snap.Source = engine.SourceQuote
			snap.Updated = q.Updated
			side := &engine.Side{Max: q.Price, Min: q.Price, Median: q.Price}
			if buysell == "b" {
				snap.Buy = side
			} else {
				snap.Sell = side
			}
			out[q.TypeID] = snap
		}
	}
	return out, nil
}

// ParseQuotes decodes an item_prices2 XML document into rows.
func ParseQuotes(body []byte) ([]Quote, error) {
	var doc quoteDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode quotes: %w", err)
	}
	out := make([]Quote, 0, len(doc.Rows))
	for _, r := range doc.Rows {
		id, err := strconv.ParseInt(r.TypeID, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("quotes: bad type id %q: %w", r.TypeID, err)
		}
		price, err := cast.ToFloat64E(r.Price)
		if err != nil {
			return nil, fmt.Errorf("quotes %d: bad price %q: %w", id, r.Price, err)
		}
		out = append(out, Quote{TypeID: int32(id), Price: price, Updated: r.Updated})
	}
	return out, nil
}

// Quotes adapts FetchQuotes to engine.PriceSource.
type Quotes struct{ Client *Client }

func (q Quotes) FetchPrices(ctx context.Context, locationID int64, ids []int32) (map[int32]engine.Snapshot, error) {
	return q.Client.FetchQuotes(ctx, locationID, ids)
}
