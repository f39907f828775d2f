package utils

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeKey folds case and trims s so that two spellings of the same
// address or filter value compare equal.
func NormalizeKey(s string) string {
	// Casers carry state and are not safe for concurrent use.
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
