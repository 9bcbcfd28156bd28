package sync

import (
	"encoding/json"
	"strconv"
	"strings"

	"storesync-api/internal/clients"
)

// ExtractCode probes a raw listing entry for an item code using an ordered
// field priority list; the first field holding a non-empty value wins.
// Numeric values (some storefronts return barcodes as numbers) are formatted
// without an exponent.
func ExtractCode(raw clients.RawProduct, priority []string) (string, bool) {
	for _, field := range priority {
		v, ok := raw[field]
		if !ok || v == nil {
			continue
		}

		switch val := v.(type) {
		case string:
			if s := strings.TrimSpace(val); s != "" {
				return s, true
			}
		case json.Number:
			if s := val.String(); s != "" && s != "0" {
				return s, true
			}
		case float64:
			if val != 0 {
				return strconv.FormatFloat(val, 'f', -1, 64), true
			}
		case int:
			if val != 0 {
				return strconv.Itoa(val), true
			}
		case int64:
			if val != 0 {
				return strconv.FormatInt(val, 10), true
			}
		}
	}
	return "", false
}
