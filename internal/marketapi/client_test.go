package marketapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve-marketscan/internal/engine"
)

const aggregatesBody = `{
	"34": {
		"buy":  {"weightedAverage": "4.9", "max": "5.01", "min": "0.01", "stddev": "1.2", "median": "4.8", "volume": "1234567.0", "orderCount": "57", "percentile": "5.0"},
		"sell": {"weightedAverage": "5.5", "max": "100", "min": "5.25", "stddev": "3.1", "median": "5.6", "volume": "7654321", "orderCount": "81", "percentile": "5.3"}
	},
	"35": {
		"buy":  {"max": 10, "min": 1, "median": 5, "volume": 0, "orderCount": 0},
		"sell": {"max": "0", "min": "0", "median": "0", "volume": "0", "orderCount": "0"}
	}
}`

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Options{
		AggregatesURL: srv.URL + "/aggregates/",
		QuotesURL:     srv.URL + "/api/item_prices2.xml",
		UserAgent:     "marketscan-test",
		Timeout:       2 * time.Second,
	})
}

func TestParseAggregates_CoercesStringLeaves(t *testing.T) {
	items, err := ParseAggregates([]byte(aggregatesBody))
	require.NoError(t, err)
	require.Len(t, items, 2)

	trit := items[34]
	require.NotNil(t, trit.Buy)
	require.NotNil(t, trit.Sell)
	assert.Equal(t, engine.SourceAggregate, trit.Source)
	assert.InDelta(t, 5.01, trit.Buy.Max, 1e-9)
	assert.InDelta(t, 4.8, trit.Buy.Median, 1e-9)
	assert.InDelta(t, 1234567.0, trit.Buy.Volume, 1e-9)
	assert.InDelta(t, 57, trit.Buy.OrderCount, 1e-9)
	assert.InDelta(t, 5.25, trit.Sell.Min, 1e-9)
	assert.InDelta(t, 81, trit.Sell.OrderCount, 1e-9)

	// Numbers on the wire coerce the same way as strings.
	assert.InDelta(t, 10, items[35].Buy.Max, 1e-9)
	assert.Zero(t, items[35].Sell.Min)
}

func TestParseAggregates_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":        `<html>502 Bad Gateway</html>`,
		"array":           `[]`,
		"bad id":          `{"abc": {"buy": {"max": "1"}}}`,
		"non-numeric max": `{"34": {"buy": {"max": "lots"}}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAggregates([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestParseAggregates_MissingSideStaysNil(t *testing.T) {
	items, err := ParseAggregates([]byte(`{"34": {"sell": {"min": "5", "volume": "10"}}, "35": {"buy": null, "sell": {"min": "1"}}}`))
	require.NoError(t, err)
	assert.Nil(t, items[34].Buy)
	assert.Nil(t, items[35].Buy)
	require.NotNil(t, items[34].Sell)
	assert.InDelta(t, 5, items[34].Sell.Min, 1e-9)
}

func TestFetchAggregates_Request(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		assert.Equal(t, "/aggregates/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(aggregatesBody))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	items, err := c.FetchAggregates(context.Background(), 60003760, []int32{34, 35})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Contains(t, gotQuery, "region=60003760")
	assert.Contains(t, gotQuery, "types=34%2C35")
	assert.Equal(t, "marketscan-test", gotUA)
}

func TestFetchAggregates_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchAggregates(context.Background(), 1, []int32{34})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

const buyXML = `<?xml version="1.0" encoding="UTF-8"?>
<emd version="2" currentTime="2024-01-02 03:04:05">
  <result>
    <rowset name="rows" key="typeID,solarsystemID,buysell" columns="buysell,typeID,solarsystemID,price,updated">
      <row buysell="b" typeID="34" solarsystemID="30000142" price="5.01" updated="2024-01-02 03:00:00"/>
      <row buysell="b" typeID="35" solarsystemID="30000142" price="0" updated="2024-01-02 03:00:00"/>
      <row buysell="b" typeID="99" solarsystemID="30000142" price="7" updated="2024-01-02 03:00:00"/>
    </rowset>
  </result>
</emd>`

const sellXML = `<?xml version="1.0" encoding="UTF-8"?>
<emd version="2">
  <result>
    <rowset name="rows">
      <row buysell="s" typeID="34" solarsystemID="30000142" price="5.5" updated="2024-01-02 03:01:00"/>
      <row buysell="s" typeID="36" solarsystemID="30000142" price="42.25" updated="2024-01-02 03:02:00"/>
    </rowset>
  </result>
</emd>`

func TestParseQuotes(t *testing.T) {
	quotes, err := ParseQuotes([]byte(buyXML))
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.Equal(t, Quote{TypeID: 34, Price: 5.01, Updated: "2024-01-02 03:00:00"}, quotes[0])

	_, err = ParseQuotes([]byte(`{"json": true}`))
	assert.Error(t, err)

	_, err = ParseQuotes([]byte(`<emd><result><rowset><row typeID="34" price="cheap"/></rowset></result></emd>`))
	assert.Error(t, err)

	quotes, err = ParseQuotes([]byte(`<emd><result><rowset><row typeID="010" price="1"/></rowset></result></emd>`))
	require.NoError(t, err)
	assert.Equal(t, int32(10), quotes[0].TypeID, "type ids are decimal")

	for _, bad := range []string{"0x22", "34.5", ""} {
		_, err = ParseQuotes([]byte(`<emd><result><rowset><row typeID="` + bad + `" price="1"/></rowset></result></emd>`))
		assert.Error(t, err, "type id %q", bad)
	}
}

func TestFetchQuotes_MergesBuyAndSell(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "none", q.Get("char_name"))
		assert.Equal(t, "30000142", q.Get("solarsystem_ids"))
		assert.Equal(t, "34,35,36", q.Get("type_ids"))
		w.Header().Set("Content-Type", "application/xml")
		switch q.Get("buysell") {
		case "b":
			w.Write([]byte(buyXML))
		case "s":
			w.Write([]byte(sellXML))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	items, err := Quotes{Client: newTestClient(srv)}.FetchPrices(context.Background(), 30000142, []int32{34, 35, 36})
	require.NoError(t, err)
	assert.EqualValues(t, 2, requests.Load())

	require.Len(t, items, 2, "zero-priced and unrequested rows are dropped")

	trit := items[34]
	assert.Equal(t, engine.SourceQuote, trit.Source)
	require.NotNil(t, trit.Buy)
	require.NotNil(t, trit.Sell)
	assert.Equal(t, 5.01, trit.BestBid())
	assert.Equal(t, 5.5, trit.BestAsk())
	assert.Equal(t, "2024-01-02 03:01:00", trit.Updated)

	sellOnly := items[36]
	assert.Nil(t, sellOnly.Buy)
	assert.Equal(t, 42.25, sellOnly.BestAsk())
	assert.True(t, engine.ValidSnapshot(sellOnly))
}

func TestAggregatesSource_FeedsBulkFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(aggregatesBody))
	}))
	defer srv.Close()

	f := engine.NewBulkFetcher(Aggregates{Client: newTestClient(srv)}, engine.FetchOptions{ChunkSize: 2, Workers: 2}, nil)
	res := f.Fetch(context.Background(), 60003760, []int32{34, 35}, nil)
	assert.Equal(t, 0, res.FailedChunks)

	store := engine.NewPriceStore(60003760, "Jita", res.Items)
	assert.Equal(t, 1, store.Len(), "item 35 has a zero best ask and is filtered")
}

func TestClient_RateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(Options{AggregatesURL: srv.URL, RequestsPerSecond: 0.001})
	_, err := c.FetchAggregates(context.Background(), 1, []int32{1})
	require.NoError(t, err, "first request uses the burst token")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.FetchAggregates(ctx, 1, []int32{1})
	assert.Error(t, err)
}
