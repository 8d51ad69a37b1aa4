// Package query turns filter input into normalized descriptors and
// parameterized SQL for the warehouse.
package query

import (
	"regexp"
	"strings"

	"crmsms/internal/models"
)

// Keyword input accepts whitespace and commas interchangeably, e.g.
// "Daegu, Gangnam 501".
var tokenSplit = regexp.MustCompile(`[,\s]+`)

// Tokenize splits a raw keyword on comma/whitespace runs, trimming each
// token and dropping empties.
func Tokenize(raw string) []string {
	var tokens []string
	for _, t := range tokenSplit.Split(raw, -1) {
		t = strings.TrimSpace(t)
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// BuildFilter validates and normalizes raw search input. allowUnfiltered
// permits an empty keyword (listing every store of the brands); otherwise at
// least one token is required. It is pure: validation failures come back as
// *models.ValidationError and must stop the caller from issuing a query.
func BuildFilter(rawKeyword string, mode models.JoinMode, brands []string, dates *models.DateRange, allowUnfiltered bool) (models.FilterDescriptor, error) {
	var clean []string
	for _, b := range brands {
		b = strings.TrimSpace(b)
		if b != "" {
			clean = append(clean, b)
		}
	}
	if len(clean) == 0 {
		return models.FilterDescriptor{}, models.Validation("select at least one brand")
	}

	tokens := Tokenize(rawKeyword)
	if len(tokens) == 0 && !allowUnfiltered {
		return models.FilterDescriptor{}, models.Validation("enter a search keyword")
	}

	switch mode {
	case models.JoinAny, models.JoinAll:
	case "":
		mode = models.JoinAny
	default:
		return models.FilterDescriptor{}, models.Validation("unknown join mode %q", mode)
	}

	if dates != nil && dates.End.Before(dates.Start) {
		return models.FilterDescriptor{}, models.Validation("purchase date range: start date is after end date")
	}

	return models.FilterDescriptor{
		Brands: clean,
		Tokens: tokens,
		Join:   mode,
		Dates:  dates,
	}, nil
}
