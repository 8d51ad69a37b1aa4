// Package export renders and parses the downloadable CSV files. Files are
// UTF-8 with a byte-order marker so spreadsheet tools open them cleanly.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"crmsms/internal/models"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

var storeHeader = []string{"store_code", "shop_name", "member_cnt", "purchaser_only_cnt", "total_cnt"}

// WriteStores renders the accumulated selection with its three counts.
func WriteStores(w io.Writer, rows []models.StoreRow) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(storeHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.StoreCode,
			r.ShopName,
			strconv.Itoa(r.MemberCount),
			strconv.Itoa(r.PurchaserOnlyCount),
			strconv.Itoa(r.TotalCount),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCIDs renders a flat single-column contact-identifier list.
func WriteCIDs(w io.Writer, cids []string) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"cid"}); err != nil {
		return err
	}
	for _, id := range cids {
		if err := cw.Write([]string{id}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadStores parses a stores CSV back into rows. The export is lossless for
// the declared columns, so write-then-read round-trips exactly.
func ReadStores(r io.Reader) ([]models.StoreRow, error) {
	br := bufio.NewReader(r)
	if err := skipBOM(br); err != nil {
		return nil, err
	}
	cr := csv.NewReader(br)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	if len(records[0]) != len(storeHeader) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(storeHeader), len(records[0]))
	}
	for i, want := range storeHeader {
		if records[0][i] != want {
			return nil, fmt.Errorf("column %d: expected %q, got %q", i, want, records[0][i])
		}
	}

	rows := make([]models.StoreRow, 0, len(records)-1)
	for n, rec := range records[1:] {
		row := models.StoreRow{StoreCode: rec[0], ShopName: rec[1]}
		if row.MemberCount, err = parseCount(rec[2]); err != nil {
			return nil, fmt.Errorf("line %d member_cnt: %w", n+2, err)
		}
		if row.PurchaserOnlyCount, err = parseCount(rec[3]); err != nil {
			return nil, fmt.Errorf("line %d purchaser_only_cnt: %w", n+2, err)
		}
		if row.TotalCount, err = parseCount(rec[4]); err != nil {
			return nil, fmt.Errorf("line %d total_cnt: %w", n+2, err)
		}
		// The cohorts are disjoint by construction, so the total must be
		// exactly the sum of the two counts.
		if row.TotalCount != row.MemberCount+row.PurchaserOnlyCount {
			return nil, fmt.Errorf("line %d: total_cnt %d != member_cnt %d + purchaser_only_cnt %d",
				n+2, row.TotalCount, row.MemberCount, row.PurchaserOnlyCount)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseCount(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

func skipBOM(br *bufio.Reader) error {
	head, err := br.Peek(len(bom))
	if err != nil && err != io.EOF {
		return err
	}
	if len(head) == len(bom) && head[0] == bom[0] && head[1] == bom[1] && head[2] == bom[2] {
		if _, err := br.Discard(len(bom)); err != nil {
			return err
		}
	}
	return nil
}
