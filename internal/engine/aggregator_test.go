package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"crmsms/internal/models"
)

func TestTotalsScenario(t *testing.T) {
	rows := []models.StoreRow{
		{StoreCode: "001", ShopName: "Gangnam", MemberCount: 100, PurchaserOnlyCount: 20, TotalCount: 120},
		{StoreCode: "002", ShopName: "Daegu", MemberCount: 50, PurchaserOnlyCount: 10, TotalCount: 60},
	}

	got := Totals(rows, 23.5)
	assert.Equal(t, 150, got.TotalMembers)
	assert.Equal(t, 30, got.TotalPurchasersOnly)
	assert.Equal(t, 180, got.TotalUnion)
	assert.InDelta(t, 4230.0, got.EstimatedCost, 1e-9)
	assert.InDelta(t, 3525.0, got.MemberCost, 1e-9)
	assert.InDelta(t, 705.0, got.PurchaserOnlyCost, 1e-9)
}

func TestTotalsEmptySelection(t *testing.T) {
	got := Totals(nil, DefaultUnitCost)
	assert.Equal(t, models.CohortTotals{}, got)
}

func TestTotalsUnionAdditivity(t *testing.T) {
	rows := []models.StoreRow{
		{StoreCode: "a", MemberCount: 3, PurchaserOnlyCount: 4, TotalCount: 7},
		{StoreCode: "b", MemberCount: 0, PurchaserOnlyCount: 9, TotalCount: 9},
		{StoreCode: "c", MemberCount: 12, PurchaserOnlyCount: 0, TotalCount: 12},
	}
	got := Totals(rows, 1)

	sum := 0
	for _, r := range rows {
		sum += r.TotalCount
	}
	assert.Equal(t, sum, got.TotalUnion)
	assert.Equal(t, got.TotalMembers+got.TotalPurchasersOnly, got.TotalUnion)
}

func TestTotalsCostScalesLinearly(t *testing.T) {
	rows := []models.StoreRow{
		{StoreCode: "a", MemberCount: 3, PurchaserOnlyCount: 4, TotalCount: 7},
	}
	base := Totals(rows, 23.5)
	doubled := Totals(rows, 47.0)
	assert.InDelta(t, 2*base.EstimatedCost, doubled.EstimatedCost, 1e-9)
	assert.InDelta(t, 2*base.MemberCost, doubled.MemberCost, 1e-9)
}
