package snapstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/rankwatch/rank"
)

var csvHeader = []string{
	"rank", "brand", "name", "originalPrice", "salePrice", "discountPct",
	"url", "rawName", "flags", "rating", "capturedAt", "strategy",
}

// flagSeparator joins multi-valued flags into one CSV cell. Flag texts
// are short badge labels and never contain it.
const flagSeparator = "|"

func encodeCSV(w io.Writer, snap *rank.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("snapstore: write header: %w", err)
	}
	for _, e := range snap.Entries {
		rec := []string{
			strconv.Itoa(e.Rank),
			e.Brand,
			e.DisplayName,
			strconv.Itoa(e.OriginalPrice),
			strconv.Itoa(e.SalePrice),
			strconv.Itoa(e.DiscountPct),
			e.URL,
			e.RawName,
			strings.Join(e.Flags, flagSeparator),
			e.Rating,
			e.CapturedAt.Format(time.RFC3339),
			string(snap.Strategy),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("snapstore: write row %d: %w", e.Rank, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func decodeCSV(r io.Reader, date time.Time) (*rank.Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("snapstore: read header: %w", err)
	}
	if len(header) == 0 || header[0] != "rank" {
		return nil, fmt.Errorf("snapstore: unrecognized header %v", header)
	}

	snap := &rank.Snapshot{Date: date}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("snapstore: read row: %w", err)
		}
		e, err := entryFromRecord(rec)
		if err != nil {
			return nil, err
		}
		if snap.Strategy == "" {
			snap.Strategy = rank.Strategy(rec[11])
		}
		snap.Entries = append(snap.Entries, e)
	}
	if len(snap.Entries) > 0 {
		snap.CapturedAt = snap.Entries[0].CapturedAt
	}
	return snap, nil
}

func entryFromRecord(rec []string) (rank.Entry, error) {
	pos, err := strconv.Atoi(rec[0])
	if err != nil {
		return rank.Entry{}, fmt.Errorf("snapstore: bad rank %q: %w", rec[0], err)
	}
	e := rank.Entry{
		Rank:        pos,
		Brand:       rec[1],
		DisplayName: rec[2],
		URL:         rec[6],
		RawName:     rec[7],
		Rating:      rec[9],
	}
	e.OriginalPrice, _ = strconv.Atoi(rec[3])
	e.SalePrice, _ = strconv.Atoi(rec[4])
	e.DiscountPct, _ = strconv.Atoi(rec[5])
	if rec[8] != "" {
		e.Flags = strings.Split(rec[8], flagSeparator)
	}
	if t, err := time.Parse(time.RFC3339, rec[10]); err == nil {
		e.CapturedAt = t
	}
	e.StableKey = rank.ResolveKey(e.URL, e.DisplayName)
	return e, nil
}
