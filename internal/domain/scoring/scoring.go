// Package scoring reduces raw telemetry records into a numeric score.
package scoring

import (
	"encoding/json"
	"math"

	"github.com/avian-io/roost/internal/domain/model"
)

// metricField is the payload field scored for the leaderboard.
const metricField = "potentiometer_value"

// Score computes the arithmetic mean of the valid metric values across
// records, rounded to two decimal places. Records with a missing or
// non-numeric value contribute nothing and do not count toward the
// denominator; a present value of zero does. An empty or all-invalid
// batch yields exactly 0.0.
//
// Score is pure: deterministic, order-independent, no side effects.
func Score(records []model.TelemetryRecord) float64 {
	var sum float64
	var count int
	for _, r := range records {
		v, ok := metricValue(r.Payload)
		if !ok {
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0.0
	}
	return round2(sum / float64(count))
}

// metricValue extracts the metric from a payload that may arrive as a
// structured map or as a serialized JSON string. Unparseable payloads are
// treated as empty rather than aborting the batch.
func metricValue(payload any) (float64, bool) {
	fields, ok := normalizePayload(payload)
	if !ok {
		return 0, false
	}
	return asNumber(fields[metricField])
}

func normalizePayload(payload any) (map[string]any, bool) {
	switch p := payload.(type) {
	case map[string]any:
		return p, true
	case string:
		var fields map[string]any
		if err := json.Unmarshal([]byte(p), &fields); err != nil {
			return nil, false
		}
		return fields, true
	case []byte:
		var fields map[string]any
		if err := json.Unmarshal(p, &fields); err != nil {
			return nil, false
		}
		return fields, true
	default:
		return nil, false
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
