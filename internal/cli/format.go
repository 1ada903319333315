package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"eve-marketscan/internal/db"
	"eve-marketscan/internal/engine"
	"eve-marketscan/internal/sde"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func itemName(types *sde.Types, id int32) string {
	if n := types.Name(id); n != "" {
		return n
	}
	return fmt.Sprintf("type %d", id)
}

// formatISK prints a price with thousands separators and two decimals.
func formatISK(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var out []byte
	for i := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, intPart[i])
	}
	if neg {
		return "-" + string(out) + frac
	}
	return string(out) + frac
}

func printCollections(w io.Writer, cols []*engine.Collection) {
	t := newTable(w)
	fmt.Fprintln(t, "LOCATION\tID\tITEMS\tRAW\tREQUESTS\tORIGIN\tDURATION")
	for _, c := range cols {
		loc := c.Market.Location()
		fmt.Fprintf(t, "%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			loc, loc.ID, c.Market.Store().Len(), len(c.Fetch.Items),
			collectionRequests(c), collectionOrigin(c), collectionDuration(c))
	}
	t.Flush()
}

func printMargins(w io.Writer, types *sde.Types, ranked []engine.MarginCandidate) {
	t := newTable(w)
	fmt.Fprintln(t, "#\tTYPE\tITEM\tBID\tASK\tWEIGHT\tMEDIAN\tSELL VOL%\tVOL m3")
	for i, c := range ranked {
		fmt.Fprintf(t, "%d\t%d\t%s\t%s\t%s\t%.3f\t%.3f\t%.0f%%\t%.2f\n",
			i+1, c.TypeID, itemName(types, c.TypeID),
			formatISK(c.Snapshot.BestBid()), formatISK(c.Snapshot.BestAsk()),
			c.Weighting, c.MedianRatio, c.SellVolumeSaturation*100, types.Volume(c.TypeID))
	}
	t.Flush()
}

func printStoredMargins(w io.Writer, types *sde.Types, rows []db.MarginResult) {
	t := newTable(w)
	fmt.Fprintln(t, "#\tTYPE\tITEM\tBID\tASK\tWEIGHT\tMEDIAN")
	for _, r := range rows {
		fmt.Fprintf(t, "%d\t%d\t%s\t%s\t%s\t%.3f\t%.3f\n",
			r.Rank, r.TypeID, itemName(types, r.TypeID),
			formatISK(r.BestBid), formatISK(r.BestAsk), r.Weighting, r.MedianRatio)
	}
	t.Flush()
}

func printArbitrage(w io.Writer, types *sde.Types, records []engine.ArbitrageRecord) {
	t := newTable(w)
	fmt.Fprintln(t, "TYPE\tITEM\tBUY AT\tBUY\tSELL AT\tSELL\tMARGIN")
	for _, r := range records {
		fmt.Fprintf(t, "%d\t%s\t%s\t%s\t%s\t%s\t%.1f%%\n",
			r.TypeID, itemName(types, r.TypeID),
			locationLabel(r.BuyLocationName, r.BuyLocation), formatISK(r.BuyPrice),
			locationLabel(r.SellLocationName, r.SellLocation), formatISK(r.SellPrice),
			r.MarginPercent())
	}
	t.Flush()
}

func locationLabel(name string, id int64) string {
	return engine.Location{ID: id, Name: name}.String()
}

func printRuns(w io.Writer, runs []db.Run) {
	t := newTable(w)
	fmt.Fprintln(t, "ID\tSTARTED\tCOMMAND\tSOURCE\tLOCATION\tITEMS\tFAILED\tDURATION")
	for _, r := range runs {
		origin := fmt.Sprintf("%dms", r.DurationMs)
		if r.FromDatapoints {
			origin = "datapoints"
		}
		fmt.Fprintf(t, "%s\t%s\t%s\t%s\t%s\t%d\t%d/%d\t%s\n",
			r.ID, r.StartedAt, r.Command, r.Source, locationLabel(r.LocationName, r.LocationID),
			r.Items, r.FailedChunks, r.Chunks, origin)
	}
	t.Flush()
}
