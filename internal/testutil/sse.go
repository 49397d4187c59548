package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// ParseSSEData parses a Server-Sent Events body into its data payloads, in
// order. The stream format is one "data: <payload>" line per event followed
// by a blank line; comment lines starting with ":" are ignored. The
// "[DONE]" sentinel is returned like any other payload so tests can assert
// its position.
func ParseSSEData(t *testing.T, body string) []string {
	t.Helper()

	var payloads []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data: "):
			payloads = append(payloads, strings.TrimPrefix(line, "data: "))
		case line == "" || strings.HasPrefix(line, ":"):
			// event separator or comment
		default:
			t.Fatalf("unexpected SSE line %d: %q", lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanning SSE body: %v", err)
	}
	return payloads
}
