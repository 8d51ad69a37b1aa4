package query

import (
	"fmt"
	"strings"

	"crmsms/internal/models"
)

// Schema names the warehouse objects the cohort queries run against. Column
// names inside the tables are fixed; the contact-identifier column and the
// status eligibility rule vary per deployment.
type Schema struct {
	AccountTable string
	ShopTable    string
	SalesTable   string
	CIDColumn    string

	ExcludeStatuses []string
	RequireStatus   string
}

const dateLayout = "2006-01-02"

// stmt accumulates SQL text and its ordered parameters together so the two
// can never drift apart.
type stmt struct {
	sb   strings.Builder
	args []any
}

func (s *stmt) raw(text string) { s.sb.WriteString(text) }

func (s *stmt) rawf(format string, a ...any) { fmt.Fprintf(&s.sb, format, a...) }

func (s *stmt) bind(text string, values ...any) {
	s.sb.WriteString(text)
	s.args = append(s.args, values...)
}

func (s *stmt) String() string { return s.sb.String() }

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// eligibility emits the account predicate: not dormant, opted into SMS, plus
// the configured status rule.
func (sc Schema) eligibility(st *stmt, alias string) {
	st.rawf("%s.sleep_yn = 'N' AND %s.recv_sms = 'Y'", alias, alias)
	for _, code := range sc.ExcludeStatuses {
		st.bind(fmt.Sprintf(" AND %s.status_cd <> ?", alias), code)
	}
	if sc.RequireStatus != "" {
		st.bind(fmt.Sprintf(" AND %s.status_cd = ?", alias), sc.RequireStatus)
	}
}

// nonBlankCID excludes NULL and whitespace-only contact identifiers.
func (sc Schema) nonBlankCID(st *stmt, alias string) {
	st.rawf("%s.%s IS NOT NULL AND LENGTH(TRIM(%s.%s)) > 0", alias, sc.CIDColumn, alias, sc.CIDColumn)
}

// keyword emits the token predicates over shop name and shop code, combined
// with OR or AND per the filter's join mode. Matching is case-insensitive.
func keyword(st *stmt, f models.FilterDescriptor, nameExpr, codeExpr string) {
	if len(f.Tokens) == 0 {
		return
	}
	joiner := " OR "
	if f.Join == models.JoinAll {
		joiner = " AND "
	}
	st.raw(" AND (")
	for i, t := range f.Tokens {
		if i > 0 {
			st.raw(joiner)
		}
		like := "%" + strings.ToLower(t) + "%"
		st.bind(fmt.Sprintf("(LOWER(%s) LIKE ? OR LOWER(%s) LIKE ?)", nameExpr, codeExpr), like, like)
	}
	st.raw(")")
}

// purchaseWindow emits the bounded date predicate as [start, end+1day),
// which is safe against DATETIME-typed order columns. Omitted entirely when
// the range is unbounded.
func purchaseWindow(st *stmt, alias string, dates *models.DateRange) {
	if dates == nil {
		return
	}
	st.bind(fmt.Sprintf(" AND %s.order_dt >= ? AND %s.order_dt < ?", alias, alias),
		dates.Start.Format(dateLayout), dates.End.AddDate(0, 0, 1).Format(dateLayout))
}

// StoreSearch builds the store listing statement: one row per matching store
// carrying the member count, the purchaser-only count (purchasers anti-joined
// against members on store and identifier, so no identifier is counted
// twice) and their sum. Ordered by union total, then members, then
// purchaser-only, all descending, with the store code as the stable final
// key.
func StoreSearch(sc Schema, f models.FilterDescriptor) (string, []any) {
	st := &stmt{}
	brandIn := placeholders(len(f.Brands))
	brandArgs := make([]any, len(f.Brands))
	for i, b := range f.Brands {
		brandArgs[i] = b
	}

	st.rawf("WITH shops AS (\n"+
		"  SELECT sh.shop_id AS store_code, COALESCE(sh.shop_nm_short, 'unmapped') AS shop_name\n"+
		"  FROM %s sh\n", sc.ShopTable)
	st.bind("  WHERE sh.brd_cd IN ("+brandIn+")", brandArgs...)
	keyword(st, f, "sh.shop_nm_short", "CAST(sh.shop_id AS CHAR(32))")

	st.rawf("\n), members AS (\n"+
		"  SELECT a.joinstore AS store_code, a.%s AS cid\n"+
		"  FROM %s a\n"+
		"  JOIN shops s ON s.store_code = a.joinstore\n", sc.CIDColumn, sc.AccountTable)
	st.bind("  WHERE a.joinbrand IN ("+brandIn+") AND ", brandArgs...)
	sc.eligibility(st, "a")
	st.raw(" AND ")
	sc.nonBlankCID(st, "a")

	st.rawf("\n), purchasers AS (\n"+
		"  SELECT DISTINCT f.shop_id AS store_code, f.cid AS cid\n"+
		"  FROM %s f\n"+
		"  JOIN %s a ON a.%s = f.cid\n"+
		"  JOIN shops s ON s.store_code = f.shop_id\n", sc.SalesTable, sc.AccountTable, sc.CIDColumn)
	st.bind("  WHERE f.brd_cd IN ("+brandIn+") AND ", brandArgs...)
	sc.eligibility(st, "a")
	st.raw(" AND f.cid IS NOT NULL AND LENGTH(TRIM(f.cid)) > 0")
	purchaseWindow(st, "f", f.Dates)

	st.raw("\n), purchaser_only AS (\n" +
		"  SELECT p.store_code, p.cid\n" +
		"  FROM purchasers p\n" +
		"  LEFT JOIN members m ON m.store_code = p.store_code AND m.cid = p.cid\n" +
		"  WHERE m.cid IS NULL\n" +
		")\n" +
		"SELECT s.store_code, s.shop_name,\n" +
		"  COALESCE(mc.cnt, 0) AS member_cnt,\n" +
		"  COALESCE(pc.cnt, 0) AS purchaser_only_cnt,\n" +
		"  COALESCE(mc.cnt, 0) + COALESCE(pc.cnt, 0) AS total_cnt\n" +
		"FROM shops s\n" +
		"LEFT JOIN (SELECT store_code, COUNT(DISTINCT cid) AS cnt FROM members GROUP BY store_code) mc ON mc.store_code = s.store_code\n" +
		"LEFT JOIN (SELECT store_code, COUNT(DISTINCT cid) AS cnt FROM purchaser_only GROUP BY store_code) pc ON pc.store_code = s.store_code\n" +
		"WHERE COALESCE(mc.cnt, 0) + COALESCE(pc.cnt, 0) > 0\n" +
		"ORDER BY total_cnt DESC, member_cnt DESC, purchaser_only_cnt DESC, s.store_code")

	return st.String(), st.args
}

// CIDExport builds the flat contact-identifier list for the chosen cohort
// over the selected stores. Blank identifiers are excluded; the union cohort
// deduplicates across members and purchasers-only.
func CIDExport(sc Schema, brands, storeCodes []string, cohort models.Cohort, dates *models.DateRange) (string, []any, error) {
	if len(brands) == 0 {
		return "", nil, models.Validation("select at least one brand")
	}
	if len(storeCodes) == 0 {
		return "", nil, models.Validation("no stores selected")
	}

	st := &stmt{}
	switch cohort {
	case models.CohortMembers:
		sc.memberCIDs(st, brands, storeCodes)
	case models.CohortPurchasersOnly:
		sc.purchaserOnlyCIDs(st, brands, storeCodes, dates)
	case models.CohortUnion:
		sc.memberCIDs(st, brands, storeCodes)
		st.raw("\nUNION\n")
		sc.purchaserOnlyCIDs(st, brands, storeCodes, dates)
	default:
		return "", nil, models.Validation("unknown cohort %q", cohort)
	}
	return st.String(), st.args, nil
}

func asArgs(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func (sc Schema) memberCIDs(st *stmt, brands, storeCodes []string) {
	st.rawf("SELECT DISTINCT a.%s AS cid\nFROM %s a\n", sc.CIDColumn, sc.AccountTable)
	st.bind("WHERE a.joinbrand IN ("+placeholders(len(brands))+") AND ", asArgs(brands)...)
	sc.eligibility(st, "a")
	st.raw(" AND ")
	sc.nonBlankCID(st, "a")
	st.bind(" AND a.joinstore IN ("+placeholders(len(storeCodes))+")", asArgs(storeCodes)...)
}

func (sc Schema) purchaserOnlyCIDs(st *stmt, brands, storeCodes []string, dates *models.DateRange) {
	st.rawf("SELECT DISTINCT f.cid AS cid\nFROM %s f\nJOIN %s a ON a.%s = f.cid\n",
		sc.SalesTable, sc.AccountTable, sc.CIDColumn)
	st.bind("WHERE f.brd_cd IN ("+placeholders(len(brands))+") AND ", asArgs(brands)...)
	sc.eligibility(st, "a")
	st.raw(" AND f.cid IS NOT NULL AND LENGTH(TRIM(f.cid)) > 0")
	st.bind(" AND f.shop_id IN ("+placeholders(len(storeCodes))+")", asArgs(storeCodes)...)
	purchaseWindow(st, "f", dates)
	// Anti-join: drop identifiers already counted as members at the same store.
	st.rawf(" AND NOT EXISTS (SELECT 1 FROM %s m WHERE m.%s = f.cid AND m.joinstore = f.shop_id", sc.AccountTable, sc.CIDColumn)
	st.bind(" AND m.joinbrand IN ("+placeholders(len(brands))+") AND ", asArgs(brands)...)
	sc.eligibility(st, "m")
	st.raw(")")
}

// ConnCheck is the trivial probe used by the connection-test endpoint.
func ConnCheck() (string, []any) {
	return "SELECT 1 AS ok", nil
}
