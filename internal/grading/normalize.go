package grading

import "strings"

// Normalize canonicalizes an option key for comparison: surrounding
// whitespace is trimmed, literal periods are removed, and the remainder is
// upper-cased. Empty or missing input normalizes to "". Every correctness
// decision in the system goes through this so immediate feedback and final
// scoring can never disagree on the same answer.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ".", "")
	return strings.ToUpper(s)
}

// IsCorrect compares a submitted option key against the correct key under
// normalization. "b." matches "B"; " b " matches "B".
func IsCorrect(selected, correctKey string) bool {
	return Normalize(selected) == Normalize(correctKey)
}
