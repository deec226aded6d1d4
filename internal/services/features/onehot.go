package features

import "sort"

// OneHotEncoder encodes instrument symbols as indicator columns. Unknown
// symbols encode to all zeros.
type OneHotEncoder struct {
	Categories []string `json:"categories"`
}

// Fit records the sorted distinct symbols.
func (e *OneHotEncoder) Fit(symbols []string) {
	seen := make(map[string]struct{}, len(symbols))
	e.Categories = e.Categories[:0]
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		e.Categories = append(e.Categories, s)
	}
	sort.Strings(e.Categories)
}

// Columns returns the feature names.
func (e *OneHotEncoder) Columns() []string {
	out := make([]string, len(e.Categories))
	for i, c := range e.Categories {
		out[i] = "symbol_" + c
	}
	return out
}

// Encode returns the indicator vector for symbol.
func (e *OneHotEncoder) Encode(symbol string) []float64 {
	out := make([]float64, len(e.Categories))
	if i := sort.SearchStrings(e.Categories, symbol); i < len(e.Categories) && e.Categories[i] == symbol {
		out[i] = 1
	}
	return out
}
