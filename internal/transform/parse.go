package transform

import "encoding/json"

// Several Gamma fields ship arrays as JSON-encoded strings. Malformed or
// missing input maps to an empty slice; these helpers never fail.

// JSONStrings parses a JSON-encoded string array.
func JSONStrings(s string) []string {
	if s == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return []string{}
	}
	if out == nil {
		return []string{}
	}
	return out
}

// JSONFloats parses a JSON-encoded array of numbers or numeric strings.
func JSONFloats(s string) []float64 {
	if s == "" {
		return []float64{}
	}
	var nums []float64
	if err := json.Unmarshal([]byte(s), &nums); err == nil {
		if nums == nil {
			return []float64{}
		}
		return nums
	}
	// Gamma often encodes prices as ["0.52","0.48"]
	var strs []string
	if err := json.Unmarshal([]byte(s), &strs); err != nil {
		return []float64{}
	}
	out := make([]float64, 0, len(strs))
	for _, v := range strs {
		out = append(out, parseFloat(v))
	}
	return out
}
