package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// JoinMode controls how multiple keyword tokens are combined.
type JoinMode string

const (
	JoinAny JoinMode = "any" // at least one token must match
	JoinAll JoinMode = "all" // every token must match
)

// Cohort names one of the three identifier populations.
type Cohort string

const (
	CohortMembers        Cohort = "members"
	CohortPurchasersOnly Cohort = "purchasers_only"
	CohortUnion          Cohort = "union"
)

// DateRange bounds the purchase window, inclusive on both ends.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// FilterDescriptor is the normalized search input. Dates == nil means the
// purchase date predicate is omitted entirely.
type FilterDescriptor struct {
	Brands []string   `json:"brands"`
	Tokens []string   `json:"tokens"`
	Join   JoinMode   `json:"join"`
	Dates  *DateRange `json:"dates,omitempty"`
}

// StoreRow is one store in a search listing or in the accumulated selection.
// TotalCount == MemberCount + PurchaserOnlyCount by construction: the
// purchaser-only cohort is purchasers minus members, so the two never overlap.
type StoreRow struct {
	StoreCode          string `json:"store_code"`
	ShopName           string `json:"shop_name"`
	MemberCount        int    `json:"member_cnt"`
	PurchaserOnlyCount int    `json:"purchaser_only_cnt"`
	TotalCount         int    `json:"total_cnt"`
}

// CohortTotals is derived from a selection on every read. EstimatedCost is
// the union-cohort cost; the per-cohort costs use the same unit rate.
type CohortTotals struct {
	TotalMembers        int     `json:"total_members"`
	TotalPurchasersOnly int     `json:"total_purchasers_only"`
	TotalUnion          int     `json:"total_union"`
	MemberCost          float64 `json:"member_cost"`
	PurchaserOnlyCost   float64 `json:"purchaser_only_cost"`
	EstimatedCost       float64 `json:"estimated_cost"`
}

// Table is a column-labeled result set from the warehouse. Cells are kept as
// strings; typing happens at the service boundary (StoreRowsFromTable).
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ColumnIndex returns the position of the named column, case-insensitive
// (warehouses differ on label casing). -1 when absent.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// Empty reports whether the table holds no rows. An empty table is a valid
// outcome, distinct from a query failure.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// Column returns all values of the named column in row order.
func (t Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("result missing column %q", name)
	}
	out := make([]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		out = append(out, r[idx])
	}
	return out, nil
}

// StoreRowsFromTable converts a warehouse listing into typed rows, validating
// that the declared columns are present.
func StoreRowsFromTable(t Table) ([]StoreRow, error) {
	cols := map[string]int{}
	for _, name := range []string{"store_code", "shop_name", "member_cnt", "purchaser_only_cnt", "total_cnt"} {
		idx := t.ColumnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("result missing column %q", name)
		}
		cols[name] = idx
	}

	rows := make([]StoreRow, 0, len(t.Rows))
	for i, raw := range t.Rows {
		row := StoreRow{
			StoreCode: raw[cols["store_code"]],
			ShopName:  raw[cols["shop_name"]],
		}
		if row.ShopName == "" {
			row.ShopName = "unmapped"
		}
		var err error
		if row.MemberCount, err = parseCount(raw[cols["member_cnt"]]); err != nil {
			return nil, fmt.Errorf("row %d member_cnt: %w", i, err)
		}
		if row.PurchaserOnlyCount, err = parseCount(raw[cols["purchaser_only_cnt"]]); err != nil {
			return nil, fmt.Errorf("row %d purchaser_only_cnt: %w", i, err)
		}
		if row.TotalCount, err = parseCount(raw[cols["total_cnt"]]); err != nil {
			return nil, fmt.Errorf("row %d total_cnt: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

// ValidationError marks missing or malformed filter input. It is recovered
// locally: the caller surfaces it as a non-fatal warning and issues no query.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// QueryServiceError wraps a failure reported by the warehouse (connection,
// auth, SQL). It is surfaced verbatim and never retried; accumulated session
// state is left untouched.
type QueryServiceError struct {
	Err error
}

func (e *QueryServiceError) Error() string { return "warehouse: " + e.Err.Error() }
func (e *QueryServiceError) Unwrap() error { return e.Err }
