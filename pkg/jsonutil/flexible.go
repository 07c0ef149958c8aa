package jsonutil

import (
	"encoding/json"
	"fmt"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases
// where LLMs or spreadsheet cells carry numbers or booleans instead of
// strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	return string(raw)
}

// FlexibleFloat converts a json.RawMessage holding either a number or a
// numeric string to a float64. Returns false when the value is neither.
func FlexibleFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return numVal, true
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		var parsed float64
		if _, err := fmt.Sscanf(strVal, "%g", &parsed); err == nil {
			return parsed, true
		}
	}

	return 0, false
}
