package automation

import (
	"encoding/json"
	"math"
	"reflect"
)

// attributesMatch reports whether every wanted attribute equals the
// current value. Numbers, including numbers nested in lists such as
// rgb_color, compare equal within tolerance.
func attributesMatch(current, want Attributes, tolerance float64) bool {
	for k, w := range want {
		have, ok := current[k]
		if !ok {
			return false
		}
		if !valueMatches(have, w, tolerance) {
			return false
		}
	}
	return true
}

func valueMatches(have, want any, tolerance float64) bool {
	if hn, ok := toFloat(have); ok {
		wn, ok := toFloat(want)
		return ok && math.Abs(hn-wn) <= tolerance
	}

	hv, wv := reflect.ValueOf(have), reflect.ValueOf(want)
	if isList(hv) && isList(wv) {
		if hv.Len() != wv.Len() {
			return false
		}
		for i := 0; i < hv.Len(); i++ {
			if !valueMatches(hv.Index(i).Interface(), wv.Index(i).Interface(), tolerance) {
				return false
			}
		}
		return true
	}

	hm, hok := have.(map[string]any)
	wm, wok := want.(map[string]any)
	if hok && wok {
		if len(hm) != len(wm) {
			return false
		}
		for k, w := range wm {
			h, ok := hm[k]
			if !ok || !valueMatches(h, w, tolerance) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(have, want)
}

func isList(v reflect.Value) bool {
	return v.IsValid() && (v.Kind() == reflect.Slice || v.Kind() == reflect.Array)
}

// toFloat converts YAML and JSON numeric representations to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
