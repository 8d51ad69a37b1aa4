package engine

import "crmsms/internal/models"

// DefaultUnitCost is the fixed LMS per-message rate, in currency units per
// identifier. Overridable through pricing config.
const DefaultUnitCost = 23.5

// Totals sums the cohort counts across the given rows and prices each cohort
// column at the same unit rate. Pure and recomputed fresh on every call;
// O(len(rows)) is fine at the expected scale of hundreds of stores.
func Totals(rows []models.StoreRow, unitCost float64) models.CohortTotals {
	var t models.CohortTotals
	for _, r := range rows {
		t.TotalMembers += r.MemberCount
		t.TotalPurchasersOnly += r.PurchaserOnlyCount
		t.TotalUnion += r.TotalCount
	}
	t.MemberCost = float64(t.TotalMembers) * unitCost
	t.PurchaserOnlyCost = float64(t.TotalPurchasersOnly) * unitCost
	t.EstimatedCost = float64(t.TotalUnion) * unitCost
	return t
}
