package scan

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/anowarzz/pricewatch/dom"
)

// Totals is the value object produced by one aggregation pass. It is
// recomputed wholesale every pass and never mutated in place.
type Totals struct {
	// Sum is the arithmetic total of all field values that parsed as
	// finite numbers. Unrounded: formatting to two decimals happens at
	// presentation and transport boundaries only.
	Sum float64 `json:"sum"`
	// Count is the number of fields that contributed to Sum.
	Count int `json:"count"`
	// FieldsFound reports whether any candidate price field exists at
	// all, whether or not its value parsed. Drives overlay visibility.
	FieldsFound bool `json:"fields_found"`
}

// FormatSum renders Sum with exactly two decimal places.
func (t Totals) FormatSum() string {
	return strconv.FormatFloat(t.Sum, 'f', 2, 64)
}

// Options tunes an aggregation pass.
type Options struct {
	// ScanFrames enables the cross-frame fallback: when the top document
	// yields no fields, same-origin child frames are searched recursively.
	// Platforms that render their forms inside iframes need this.
	ScanFrames bool
	// Logger overrides slog.Default. Only frame skips are logged.
	Logger *slog.Logger
}

// Compute runs one full aggregation pass over doc.
//
// Explicitly marked fields win: when any input carries the strict marker
// combination, that set is authoritative and the heuristics are skipped for
// the whole pass. Otherwise every input is classified heuristically, and
// only if that also comes up empty (and opts.ScanFrames is set) are child
// frames searched. A frame that refuses access is skipped and logged, never
// fatal. The only error Compute returns is a failed enumeration on the top
// document, which means the page channel itself is gone.
func Compute(ctx context.Context, doc dom.Document, opts Options) (Totals, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	inputs, err := doc.Inputs(ctx)
	if err != nil {
		return Totals{}, fmt.Errorf("scan: enumerate inputs: %w", err)
	}

	fields := explicitFields(inputs)
	if len(fields) == 0 {
		fields = heuristicFields(inputs)
	}
	if len(fields) == 0 && opts.ScanFrames {
		fields = frameFields(ctx, doc, log)
	}

	return tally(fields), nil
}

func explicitFields(inputs []dom.Input) []dom.Input {
	var out []dom.Input
	for _, in := range inputs {
		if IsExplicitMarker(in) {
			out = append(out, in)
		}
	}
	return out
}

func heuristicFields(inputs []dom.Input) []dom.Input {
	var out []dom.Input
	for _, in := range inputs {
		if IsPriceField(in) {
			out = append(out, in)
		}
	}
	return out
}

// frameFields searches child frames recursively with the heuristic
// classifier. Unreachable frames are isolated failures: skipped per frame,
// the rest of the pass continues.
func frameFields(ctx context.Context, doc dom.Document, log *slog.Logger) []dom.Input {
	frames, err := doc.Frames(ctx)
	if err != nil {
		log.Warn("scan: enumerate frames failed", "error", err)
		return nil
	}

	var out []dom.Input
	for i, fr := range frames {
		contents, err := fr.Contents(ctx)
		if err != nil {
			log.Debug("scan: frame skipped", "frame", i, "error", err)
			continue
		}
		inputs, err := contents.Inputs(ctx)
		if err != nil {
			log.Debug("scan: frame inputs failed", "frame", i, "error", err)
			continue
		}
		out = append(out, heuristicFields(inputs)...)
		out = append(out, frameFields(ctx, contents, log)...)
	}
	return out
}

// tally sums the parseable values in document scan order. Values that do
// not parse as finite numbers are filtered, not errors.
func tally(fields []dom.Input) Totals {
	t := Totals{FieldsFound: len(fields) > 0}
	for _, f := range fields {
		v, ok := parseLeadingFloat(f.Value)
		if !ok {
			continue
		}
		t.Sum += v
		t.Count++
	}
	return t
}

// parseLeadingFloat parses the longest numeric prefix of the trimmed value,
// the way browsers read a form value: "12.50 USD" contributes 12.50, a value
// with no leading number contributes nothing. Non-finite results are
// excluded so the sum stays finite.
func parseLeadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)

	i, end := 0, 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := false
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits = true
		end = i
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			digits = true
			end = i
		}
	}
	if !digits {
		return 0, false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		expDigits := false
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			expDigits = true
		}
		if expDigits {
			end = j
		}
	}

	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
