// Package scan decides which form inputs are price fields and aggregates
// their values into Totals. Both halves are pure functions over dom
// snapshots, so the same logic runs against a live page, a parsed snapshot,
// or a synthetic document.
package scan

import (
	"strings"

	"github.com/anowarzz/pricewatch/dom"
)

// IsPriceField reports whether an input looks like a monetary amount.
//
// The checks run in order and any match wins: class, data-type annotation,
// name, id, placeholder. Attribute matching is substring-based on the three
// literal casings "price", "Price" and "PRICE" — deliberately loose, so
// "unitPriceValue" qualifies and so does "priceless_quote". Mixed casings
// like "PriCe" do not. The data-type check alone is an exact match.
func IsPriceField(in dom.Input) bool {
	if containsPrice(in.Class) {
		return true
	}
	switch in.DataType {
	case "price", "Price", "PRICE":
		return true
	}
	if containsPrice(in.Name) {
		return true
	}
	if containsPrice(in.ID) {
		return true
	}
	return containsPrice(in.Placeholder)
}

// IsExplicitMarker reports whether an input carries the strict opt-in
// marking: data-type exactly "price" combined with a structured "price"
// class token. Pages that mark fields this way disable the heuristics.
func IsExplicitMarker(in dom.Input) bool {
	return in.DataType == "price" && hasClassToken(in.Class, "price")
}

func containsPrice(s string) bool {
	return strings.Contains(s, "price") ||
		strings.Contains(s, "Price") ||
		strings.Contains(s, "PRICE")
}

// hasClassToken matches the way a CSS class selector would: the class
// attribute split on whitespace must contain token exactly.
func hasClassToken(class, token string) bool {
	for _, f := range strings.Fields(class) {
		if f == token {
			return true
		}
	}
	return false
}
