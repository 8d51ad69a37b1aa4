package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmsms/internal/models"
)

func TestTokenizeSeparatorStyles(t *testing.T) {
	// Mixed whitespace and commas tokenize identically.
	cases := []string{"a, b  c", "a,b,c", " a\tb ,, c ", "a , b , c"}
	for _, raw := range cases {
		assert.Equal(t, []string{"a", "b", "c"}, Tokenize(raw), "input %q", raw)
	}
	assert.Nil(t, Tokenize("   "))
	assert.Nil(t, Tokenize(""))
}

func TestBuildFilterValidation(t *testing.T) {
	var verr *models.ValidationError

	_, err := BuildFilter("gangnam", models.JoinAny, nil, nil, false)
	require.ErrorAs(t, err, &verr)

	_, err = BuildFilter("gangnam", models.JoinAny, []string{" ", ""}, nil, false)
	require.ErrorAs(t, err, &verr, "blank brands count as empty")

	_, err = BuildFilter("  ,  ", models.JoinAny, []string{"X"}, nil, false)
	require.ErrorAs(t, err, &verr, "keyword of pure separators has no tokens")

	_, err = BuildFilter("gangnam", "sometimes", []string{"X"}, nil, false)
	require.ErrorAs(t, err, &verr)
}

func TestBuildFilterUnfiltered(t *testing.T) {
	_, err := BuildFilter("", models.JoinAny, []string{"X"}, nil, false)
	require.Error(t, err)

	f, err := BuildFilter("", models.JoinAny, []string{"X"}, nil, true)
	require.NoError(t, err)
	assert.Empty(t, f.Tokens)
}

func TestBuildFilterDefaultsToAny(t *testing.T) {
	f, err := BuildFilter("gangnam", "", []string{"X"}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, models.JoinAny, f.Join)
}

func TestBuildFilterInvertedDateRangeRejected(t *testing.T) {
	dates := &models.DateRange{
		Start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	var verr *models.ValidationError
	_, err := BuildFilter("gangnam", models.JoinAny, []string{"X"}, dates, false)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "date range")
}

func TestBuildFilterNormalizes(t *testing.T) {
	dates := &models.DateRange{
		Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	f, err := BuildFilter("Daegu, Gangnam 501", models.JoinAll, []string{" X ", "M"}, dates, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "M"}, f.Brands)
	assert.Equal(t, []string{"Daegu", "Gangnam", "501"}, f.Tokens)
	assert.Equal(t, models.JoinAll, f.Join)
	assert.Equal(t, dates, f.Dates)
}
