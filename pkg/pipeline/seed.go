package pipeline

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"augplayground/internal/apperror"
)

// ParseSeed interprets a request seed. nil means unseeded. JSON integers,
// integral or fractional floats (truncated toward zero) and integer
// strings are accepted; anything else is InvalidInput.
func ParseSeed(raw any) (*int64, error) {
	var (
		n  int64
		ok bool
	)
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case json.Number:
		n, ok = parseSeedText(t.String(), true)
	case float64:
		n, ok = truncate(t)
	case int:
		n, ok = int64(t), true
	case int64:
		n, ok = t, true
	case string:
		n, ok = parseSeedText(strings.TrimSpace(t), false)
	}
	if !ok {
		return nil, apperror.InvalidInput("Invalid seed: %v", raw)
	}
	return &n, nil
}

// parseSeedText parses integer text. Float text is accepted only for JSON
// numbers, mirroring int() on a decoded float versus on a string.
func parseSeedText(s string, allowFloat bool) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if !allowFloat {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return truncate(f)
}

func truncate(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
