package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var errorLabels = map[string]string{
	"TIMEOUT":   "Request timeout",
	"NETWORK":   "Network error",
	"MALFORMED": "Malformed response",
	"CANCELED":  "Canceled",
	"ERROR":     "Unclassified error",
}

// FriendlyErrorName labels an outcome error code for the summary tables.
// Numeric codes are HTTP statuses; other unknown codes are shown in
// sentence case with underscores as spaces.
func FriendlyErrorName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "Unknown error"
	}
	if label, ok := errorLabels[strings.ToUpper(code)]; ok {
		return label
	}
	if status, err := strconv.Atoi(code); err == nil {
		if text := http.StatusText(status); text != "" {
			return fmt.Sprintf("HTTP %d %s", status, text)
		}
		return fmt.Sprintf("HTTP %d", status)
	}
	words := strings.Fields(strings.ReplaceAll(code, "_", " "))
	if len(words) == 0 {
		return "Unknown error"
	}
	label := strings.ToLower(strings.Join(words, " "))
	return strings.ToUpper(label[:1]) + label[1:]
}
