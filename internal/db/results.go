package db

import (
	"fmt"

	"eve-marketscan/internal/engine"
)

// InsertArbitrageResults bulk-inserts arbitrage records linked to a run.
func (d *DB) InsertArbitrageResults(runID string, records []engine.ArbitrageRecord) error {
	if runID == "" || len(records) == 0 {
		return nil
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("insert arbitrage results: begin tx: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO arbitrage_results (
		run_id, type_id, buy_location, buy_location_name, buy_price,
		sell_location, sell_location_name, sell_price
	) VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert arbitrage results: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(
			runID, r.TypeID, r.BuyLocation, r.BuyLocationName, r.BuyPrice,
			r.SellLocation, r.SellLocationName, r.SellPrice,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert arbitrage results: %w", err)
		}
	}
	return tx.Commit()
}

// GetArbitrageResults retrieves the arbitrage records of a run in insertion order.
func (d *DB) GetArbitrageResults(runID string) []engine.ArbitrageRecord {
	rows, err := d.sql.Query(`
		SELECT type_id, buy_location, COALESCE(buy_location_name, ''), buy_price,
			sell_location, COALESCE(sell_location_name, ''), sell_price
		FROM arbitrage_results WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var results []engine.ArbitrageRecord
	for rows.Next() {
		var r engine.ArbitrageRecord
		if err := rows.Scan(
			&r.TypeID, &r.BuyLocation, &r.BuyLocationName, &r.BuyPrice,
			&r.SellLocation, &r.SellLocationName, &r.SellPrice,
		); err != nil {
			continue
		}
		results = append(results, r)
	}
	return results
}

// MarginResult is a stored margin ranking row.
type MarginResult struct {
	Rank                 int     `json:"rank"`
	TypeID               int32   `json:"type_id"`
	BestBid              float64 `json:"best_bid"`
	BestAsk              float64 `json:"best_ask"`
	Weighting            float64 `json:"weighting"`
	MedianRatio          float64 `json:"median_ratio"`
	SellVolumeSaturation float64 `json:"sell_volume_saturation"`
	SellOrderSaturation  float64 `json:"sell_order_saturation"`
}

// InsertMarginResults stores ranked candidates; rank follows slice order, from 1.
func (d *DB) InsertMarginResults(runID string, candidates []engine.MarginCandidate) error {
	if runID == "" || len(candidates) == 0 {
		return nil
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("insert margin results: begin tx: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO margin_results (
		run_id, rank, type_id, best_bid, best_ask, weighting,
		median_ratio, sell_volume_saturation, sell_order_saturation
	) VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert margin results: prepare: %w", err)
	}
	defer stmt.Close()

	for i, c := range candidates {
		if _, err := stmt.Exec(
			runID, i+1, c.TypeID, c.Snapshot.BestBid(), c.Snapshot.BestAsk(), c.Weighting,
			c.MedianRatio, c.SellVolumeSaturation, c.SellOrderSaturation,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert margin results: %w", err)
		}
	}
	return tx.Commit()
}

// GetMarginResults retrieves a run's margin ranking, best first.
func (d *DB) GetMarginResults(runID string) []MarginResult {
	rows, err := d.sql.Query(`
		SELECT rank, type_id, COALESCE(best_bid, 0), COALESCE(best_ask, 0), weighting,
			COALESCE(median_ratio, 0), COALESCE(sell_volume_saturation, 0), COALESCE(sell_order_saturation, 0)
		FROM margin_results WHERE run_id = ? ORDER BY rank
	`, runID)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var results []MarginResult
	for rows.Next() {
		var r MarginResult
		if err := rows.Scan(
			&r.Rank, &r.TypeID, &r.BestBid, &r.BestAsk, &r.Weighting,
			&r.MedianRatio, &r.SellVolumeSaturation, &r.SellOrderSaturation,
		); err != nil {
			continue
		}
		results = append(results, r)
	}
	return results
}
